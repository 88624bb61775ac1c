package directory

import (
	"context"
	"time"
)

// User is a directory record for a registered account. The presence core
// never writes these; accounts are managed by an external service.
type User struct {
	Id          string
	DisplayName string
	CreatedAt   time.Time
}

// Directory is the read-only contract against the external user store. It is
// consulted during the websocket handshake and on cold start.
type Directory interface {
	Ping(ctx context.Context) error
	GetUser(ctx context.Context, userId string) (User, error)
	ListUserRooms(ctx context.Context, userId string) ([]string, error)
	Close() error
}
