// Package redis is a Redis-backed corvus.SessionStore, letting the opaque
// session payload corvus.SessionInfo carries survive past one process —
// the piece HostRuntime's own in-memory session cache deliberately cannot
// provide, since the live service instances it caches are not themselves
// serializable. Modeled on the L2-cache half of a tiered cache: a
// RedisCache wrapping github.com/redis/go-redis/v9 behind a small
// Get/Set/Delete surface; this package does the same for
// corvus.SessionStore.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oriys/corvus"
)

// Config configures a Store's connection to Redis.
type Config struct {
	Addr      string // Redis address (e.g. "localhost:6379")
	Password  string
	DB        int
	KeyPrefix string // default "corvus:session:"
}

// Store implements corvus.SessionStore over a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a Store from cfg, opening (but not yet connecting — go-redis
// dials lazily on first command) a client.
func New(cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "corvus:session:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, prefix: prefix}
}

// NewFromClient wraps an already-constructed client, letting a caller
// share one Redis connection pool across several corvus hosts.
func NewFromClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "corvus:session:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(id string) string { return s.prefix + id }

// Get implements corvus.SessionStore.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, corvus.ErrSessionNotFound
	}
	if err != nil {
		return nil, corvus.ErrTransport(err)
	}
	return val, nil
}

// Set implements corvus.SessionStore. ttl of zero means no expiry.
func (s *Store) Set(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return corvus.ErrTransport(err)
	}
	return nil
}

// Delete implements corvus.SessionStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return corvus.ErrTransport(err)
	}
	return nil
}

// Close releases the underlying client's connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
