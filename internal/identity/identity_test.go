package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-presence/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

func signedToken(t *testing.T, claims jwt.MapClaims, key []byte) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign test token")
	return signed
}

func TestJWTResolver_Resolve(t *testing.T) {
	t.Run("valid credential", func(t *testing.T) {
		dir := &directory.MockDirectory{}
		defer dir.AssertExpectations(t)

		dir.On("GetUser", mock.Anything, "u1").Return(directory.User{Id: "u1", DisplayName: "Alice"}, nil).Once()

		r := NewJWTResolver(testSigningKey, dir)
		credential := signedToken(t, jwt.MapClaims{
			"user-id": "u1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSigningKey)

		ident, err := r.Resolve(context.Background(), credential)
		assert.NoError(t, err, "expected resolution to succeed")
		assert.Equal(t, "u1", ident.UserId)
		assert.Equal(t, "Alice", ident.DisplayName)
	})

	t.Run("garbage credential", func(t *testing.T) {
		r := NewJWTResolver(testSigningKey, &directory.MockDirectory{})

		_, err := r.Resolve(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrHandshakeRejected, "expected handshake to be rejected")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		r := NewJWTResolver(testSigningKey, &directory.MockDirectory{})
		credential := signedToken(t, jwt.MapClaims{
			"user-id": "u1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, []byte("other-key"))

		_, err := r.Resolve(context.Background(), credential)
		assert.ErrorIs(t, err, ErrHandshakeRejected, "expected handshake to be rejected")
	})

	t.Run("expired token", func(t *testing.T) {
		r := NewJWTResolver(testSigningKey, &directory.MockDirectory{})
		credential := signedToken(t, jwt.MapClaims{
			"user-id": "u1",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}, testSigningKey)

		_, err := r.Resolve(context.Background(), credential)
		assert.ErrorIs(t, err, ErrHandshakeRejected, "expected handshake to be rejected")
	})

	t.Run("missing user id claim", func(t *testing.T) {
		r := NewJWTResolver(testSigningKey, &directory.MockDirectory{})
		credential := signedToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSigningKey)

		_, err := r.Resolve(context.Background(), credential)
		assert.ErrorIs(t, err, ErrHandshakeRejected, "expected handshake to be rejected")
	})

	t.Run("unknown user", func(t *testing.T) {
		dir := &directory.MockDirectory{}
		defer dir.AssertExpectations(t)

		dir.On("GetUser", mock.Anything, "ghost").Return(directory.User{}, errors.New("no rows")).Once()

		r := NewJWTResolver(testSigningKey, dir)
		credential := signedToken(t, jwt.MapClaims{
			"user-id": "ghost",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSigningKey)

		_, err := r.Resolve(context.Background(), credential)
		assert.ErrorIs(t, err, ErrHandshakeRejected, "expected handshake to be rejected for unknown user")
	})
}
