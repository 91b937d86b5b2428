package testutils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/stretchr/testify/require"
)

// TestJWTSecret is the HS256 key used by the test token fixtures.
const TestJWTSecret = "chat-sync-test-secret"

// SignedUserToken returns an HS256 token for the given user, valid for an
// hour.
func SignedUserToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token := jwt.New()
	require.NoError(t, token.Set(jwt.SubjectKey, userID.String()))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	require.NoError(t, token.Set(jwt.ExpirationKey, time.Now().Add(time.Hour)))

	signed, err := jwt.Sign(token, jwa.HS256, []byte(TestJWTSecret))
	require.NoError(t, err)
	return string(signed)
}

// ExpiredUserToken returns an HS256 token that expired an hour ago.
func ExpiredUserToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token := jwt.New()
	require.NoError(t, token.Set(jwt.SubjectKey, userID.String()))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now().Add(-2*time.Hour)))
	require.NoError(t, token.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour)))

	signed, err := jwt.Sign(token, jwa.HS256, []byte(TestJWTSecret))
	require.NoError(t, err)
	return string(signed)
}
