package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix    = "user:%d"
	SessionKeyPrefix = "session:%s"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf(SessionKeyPrefix, sessionID)
}

// Aside implements the cache-aside pattern: on a hit dest is populated from
// Redis, on a miss fill runs and its result is stored under key with the
// given TTL. With no Redis client configured it degrades to calling fill.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fill func() error) error {
	if client == nil {
		return fill()
	}

	data, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(data, dest); jsonErr == nil {
			return nil
		}
		// Corrupt entry; drop it and fall through to the source of truth.
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		// Redis unavailable; serve from the source of truth.
		return fill()
	}

	if err := fill(); err != nil {
		return err
	}

	if data, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, data, ttl)
	}
	return nil
}

// Invalidate removes a single cache entry.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateUser removes the cached record for the given user.
func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}
