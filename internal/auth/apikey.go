package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/evaluation-service/pkg/util"
)

// APIKeyMiddleware guards the back-office endpoints (create, list) with the
// static shared secret. The secret is hashed once at startup so request-time
// comparison is constant-time and the plaintext never sits in the handler path.
type APIKeyMiddleware struct {
	hash []byte
}

// NewAPIKeyMiddleware constructs the middleware. An empty secret disables the
// guard, which is only acceptable in development.
func NewAPIKeyMiddleware(secret string) (*APIKeyMiddleware, error) {
	if secret == "" {
		return &APIKeyMiddleware{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &APIKeyMiddleware{hash: hash}, nil
}

// Handle enforces the shared secret on protected routes.
func (m *APIKeyMiddleware) Handle(c *fiber.Ctx) error {
	if len(m.hash) == 0 {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	if err := bcrypt.CompareHashAndPassword(m.hash, []byte(parts[1])); err != nil {
		return apperrors.NewUnauthorized("invalid api secret")
	}
	return c.Next()
}
