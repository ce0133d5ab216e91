// Package session stores the refresh token currently valid for each user.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "session:refresh:"

// RedisStore keeps one refresh token per username with the token's own TTL,
// so sessions expire from the store when the token does.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore constructs the store.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix}
}

// Save records the token as the user's current session.
func (s *RedisStore) Save(ctx context.Context, username, refreshToken string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+username, refreshToken, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Validate reports whether the presented token is the user's current one.
func (s *RedisStore) Validate(ctx context.Context, username, refreshToken string) (bool, error) {
	stored, err := s.client.Get(ctx, s.keyPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return stored == refreshToken, nil
}

// Delete drops the user's session.
func (s *RedisStore) Delete(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.keyPrefix+username).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryStore is the fallback when no redis is configured; sessions then
// live only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]memoryEntry
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]memoryEntry)}
}

// Save records the token.
func (m *MemoryStore) Save(_ context.Context, username, refreshToken string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[username] = memoryEntry{token: refreshToken, expires: time.Now().Add(ttl)}
	return nil
}

// Validate reports whether the token matches and has not expired.
func (m *MemoryStore) Validate(_ context.Context, username, refreshToken string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.tokens[username]
	if !ok || time.Now().After(entry.expires) {
		return false, nil
	}
	return entry.token == refreshToken, nil
}

// Delete drops the user's session.
func (m *MemoryStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, username)
	return nil
}
