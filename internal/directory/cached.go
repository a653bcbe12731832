package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// CachedDirectory decorates a Directory with a Redis read-through cache.
// Lookup failures other than ErrNotFound fall back to the inner directory so
// a cache outage never takes the lookup path down.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
}

var _ Directory = (*CachedDirectory)(nil)

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("directory:user:%d", id)
}

func (d *CachedDirectory) LookupUser(ctx context.Context, id int64) (User, error) {
	if raw, err := d.client.Get(ctx, cacheKey(id)).Result(); err == nil {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			return u, nil
		}
	}

	u, err := d.next.LookupUser(ctx, id)
	if err != nil {
		return User{}, err
	}

	if raw, err := json.Marshal(u); err == nil {
		// Best-effort; a failed write only costs the next lookup.
		_ = d.client.Set(ctx, cacheKey(id), raw, d.ttl).Err()
	}
	return u, nil
}
