package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	sess := New("user-1", "ada", signedToken(t, now.Add(time.Hour)))
	assert.False(t, sess.TokenExpired(now))

	sess = New("user-1", "ada", signedToken(t, now.Add(-time.Hour)))
	assert.True(t, sess.TokenExpired(now))
}

func TestTokenExpiredOpaqueToken(t *testing.T) {
	t.Parallel()

	// Non-JWT API tokens never expire locally.
	sess := New("user-1", "ada", "opaque-api-key")
	assert.False(t, sess.TokenExpired(time.Now()))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, New("user-1", "ada", "").Validate())
	assert.NoError(t, New("user-1", "ada", "tok").Validate())
}
