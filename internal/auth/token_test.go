package auth_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/spec-kit/evaluation-service/internal/auth"
)

func TestTokenManager(t *testing.T) {
	Convey("Given a token manager with a one-minute TTL", t, func() {
		manager := auth.NewTokenManager("survey-secret", time.Minute)

		Convey("When issuing a token for an evaluation", func() {
			token, expiresAt, err := manager.Issue("eval-123", "RAFAEL", "SUPER INTERNET", "protocolo321")

			Convey("Then it should produce a signed token with a future expiry", func() {
				So(err, ShouldBeNil)
				So(token, ShouldNotBeEmpty)
				So(expiresAt.After(time.Now()), ShouldBeTrue)
			})

			Convey("And parsing it should return the original claims", func() {
				claims, err := manager.Parse(token)
				So(err, ShouldBeNil)
				So(claims.EvaluationID, ShouldEqual, "eval-123")
				So(claims.AttendantName, ShouldEqual, "RAFAEL")
				So(claims.CompanyName, ShouldEqual, "SUPER INTERNET")
				So(claims.TicketRef, ShouldEqual, "protocolo321")
			})

			Convey("And a manager with a different secret should reject it", func() {
				other := auth.NewTokenManager("rotated-secret", time.Minute)
				_, err := other.Parse(token)
				So(err, ShouldEqual, auth.ErrTokenInvalid)
			})

			Convey("And a tampered token should be invalid", func() {
				_, err := manager.Parse(token + "x")
				So(err, ShouldEqual, auth.ErrTokenInvalid)
			})
		})

		Convey("When parsing garbage", func() {
			_, err := manager.Parse("not-a-token")

			Convey("Then it should fail as invalid", func() {
				So(err, ShouldEqual, auth.ErrTokenInvalid)
			})
		})
	})

	Convey("Given a token manager whose TTL has already elapsed", t, func() {
		manager := auth.NewTokenManager("survey-secret", -time.Minute)
		token, _, err := manager.Issue("eval-123", "RAFAEL", "SUPER INTERNET", "protocolo321")
		So(err, ShouldBeNil)

		Convey("When parsing the token", func() {
			_, err := manager.Parse(token)

			Convey("Then it should fail with the expiry sentinel, not invalid", func() {
				So(err, ShouldEqual, auth.ErrTokenExpired)
			})
		})
	})
}
