package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/actionflow/pkg/session"
)

// SessionStore keeps sessions in Redis so several shells can share one login.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore returns a store backed by client. A zero ttl keeps keys forever.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) makeKey(name string) string {
	return fmt.Sprintf("actionflow:session:%s", name)
}

// Load implements session.Store.
func (s *SessionStore) Load(ctx context.Context, key string) (*session.Context, error) {
	val, err := s.client.Get(ctx, s.makeKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var c session.Context
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	return &c, nil
}

// Save implements session.Store.
func (s *SessionStore) Save(ctx context.Context, key string, c *session.Context) error {
	if c == nil {
		return errors.New("session: nil context")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.makeKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Delete implements session.Store.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
