package directory

import (
	"context"
	"database/sql"
)

type PgDirectory struct {
	conn *sql.DB
}

func NewPgDirectory(ctx context.Context, dsn string) (*PgDirectory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return &PgDirectory{conn: db}, nil
}

func (d *PgDirectory) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *PgDirectory) GetUser(ctx context.Context, userId string) (User, error) {
	var u User
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM accounts WHERE id = $1`,
		userId,
	).Scan(&u.Id, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}

	return u, nil
}

func (d *PgDirectory) ListUserRooms(ctx context.Context, userId string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT room_id FROM room_memberships WHERE account_id = $1`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var roomId string
		if err := rows.Scan(&roomId); err != nil {
			return nil, err
		}
		rooms = append(rooms, roomId)
	}

	return rooms, rows.Err()
}

func (d *PgDirectory) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
