package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by Parse when the embedded expiry has passed.
var ErrTokenExpired = errors.New("survey token expired")

// ErrTokenInvalid is returned by Parse for malformed or mis-signed tokens.
var ErrTokenInvalid = errors.New("survey token invalid")

// TokenManager issues and verifies the signed survey tokens. It is a pure
// function of token, secret and clock; it never touches the store.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager. The secret is read once at startup;
// changing it invalidates every previously issued token.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// SurveyClaims binds an evaluation id to its creation attributes.
type SurveyClaims struct {
	EvaluationID  string `json:"evaluation_id"`
	AttendantName string `json:"attendant_name"`
	CompanyName   string `json:"company_name"`
	TicketRef     string `json:"ticket_ref"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the evaluation.
func (tm *TokenManager) Issue(evaluationID, attendantName, companyName, ticketRef string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &SurveyClaims{
		EvaluationID:  evaluationID,
		AttendantName: attendantName,
		CompanyName:   companyName,
		TicketRef:     ticketRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   evaluationID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the original claims.
// Expiry and signature failures are distinguishable via ErrTokenExpired and
// ErrTokenInvalid.
func (tm *TokenManager) Parse(tokenStr string) (*SurveyClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SurveyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*SurveyClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
