package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-presence/internal/directory"
)

// ErrHandshakeRejected is returned when a credential cannot be resolved to a
// known user. The connection must never reach the connection registry.
var ErrHandshakeRejected = errors.New("handshake rejected")

const userIdClaim = "user-id"

// Identity is the stable identity bound to a connection for its lifetime.
type Identity struct {
	UserId      string
	DisplayName string
}

// Resolver validates a caller-supplied credential and returns the identity it
// belongs to.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// JWTResolver verifies an HS256 token and looks the subject up in the user
// directory.
type JWTResolver struct {
	signingKey []byte
	dir        directory.Directory
}

func NewJWTResolver(signingKey []byte, dir directory.Directory) *JWTResolver {
	return &JWTResolver{
		signingKey: signingKey,
		dir:        dir,
	}
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (Identity, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: parse token: %v", ErrHandshakeRejected, err)
	}

	if !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrHandshakeRejected)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid token claims", ErrHandshakeRejected)
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return Identity{}, fmt.Errorf("%w: invalid user id claim", ErrHandshakeRejected)
	}

	user, err := r.dir.GetUser(ctx, userId)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: lookup user %q: %v", ErrHandshakeRejected, userId, err)
	}

	return Identity{
		UserId:      user.Id,
		DisplayName: user.DisplayName,
	}, nil
}
