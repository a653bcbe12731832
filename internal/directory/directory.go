// Package directory is the narrow boundary to the externally-owned user
// records: id, display name and avatar reference. Nothing here mutates users.
package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory: user not found")

// User is the projection of an external user consumed by this backend.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

type Directory interface {
	LookupUser(ctx context.Context, id int64) (User, error)
}
