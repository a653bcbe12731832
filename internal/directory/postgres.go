package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory reads the users table maintained by the auth service.
type PgDirectory struct {
	pool *pgxpool.Pool
}

var _ Directory = (*PgDirectory)(nil)

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) LookupUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := d.pool.QueryRow(ctx,
		`SELECT id, first_name, profile_image FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.AvatarRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("directory: lookup user %d: %w", id, err)
	}
	return u, nil
}
