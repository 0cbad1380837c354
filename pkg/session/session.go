// Package session carries the authenticated user context that every remote
// call needs. It's constructed once at startup and passed down explicitly
// instead of living in a process-wide "current viewer" global.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Session struct {
	UserID    string
	Username  string
	AuthToken string
}

func New(userID, username, authToken string) *Session {
	return &Session{
		UserID:    userID,
		Username:  username,
		AuthToken: authToken,
	}
}

// TokenExpired inspects the auth token's exp claim without verifying the
// signature (the server is the verifier; we only want to fail fast locally
// instead of burning a round trip on a token we know is stale). Tokens that
// aren't JWTs or carry no exp claim are assumed live.
func (s *Session) TokenExpired(now time.Time) bool {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(s.AuthToken, claims)
	if err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return now.After(exp.Time)
}

// Validate checks that the session is usable for remote calls.
func (s *Session) Validate() error {
	if s.AuthToken == "" {
		return errors.New("session has no auth token")
	}
	return nil
}
