// Package session implements the server-side session store. A session is a
// Redis entry keyed by a random ID carried in a cookie; its value is the
// user's current identity token.
package session

import (
	"context"
	"errors"
	"time"

	"socialdb/internal/cache"
	"socialdb/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CookieName is the cookie that references the server-side session.
const CookieName = "session_id"

// TTL matches the identity token lifetime so a session never outlives the
// token it holds.
const TTL = time.Hour

// ErrNotFound is returned when a session is missing or has expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a session store backed by the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// Create stores the token under a fresh session ID and returns that ID.
func (s *Store) Create(ctx context.Context, token string) (string, error) {
	sid := uuid.NewString()
	if err := s.redis.Set(ctx, cache.SessionKey(sid), token, TTL).Err(); err != nil {
		middleware.SessionOps.WithLabelValues("create", "error").Inc()
		return "", err
	}
	middleware.SessionOps.WithLabelValues("create", "ok").Inc()
	return sid, nil
}

// Get resolves a session ID to the token it holds.
func (s *Store) Get(ctx context.Context, sid string) (string, error) {
	token, err := s.redis.Get(ctx, cache.SessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		middleware.SessionOps.WithLabelValues("get", "miss").Inc()
		return "", ErrNotFound
	}
	if err != nil {
		middleware.SessionOps.WithLabelValues("get", "error").Inc()
		return "", err
	}
	middleware.SessionOps.WithLabelValues("get", "ok").Inc()
	return token, nil
}

// Destroy removes the session. Destroying a session that does not exist is
// not an error.
func (s *Store) Destroy(ctx context.Context, sid string) error {
	if err := s.redis.Del(ctx, cache.SessionKey(sid)).Err(); err != nil {
		middleware.SessionOps.WithLabelValues("destroy", "error").Inc()
		return err
	}
	middleware.SessionOps.WithLabelValues("destroy", "ok").Inc()
	return nil
}
