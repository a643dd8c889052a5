package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// RedisStore implements Store on a Redis server. The settings document is stored as JSON;
// event keys expire server-side.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "mcbridge:config".
	Prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisStore(client, opts.Prefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mcbridge"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) settingsKey() string {
	return s.prefix + ":" + settingsKey
}

func (s *RedisStore) eventKey(key string) string {
	return s.prefix + ":event:" + key
}

// Load returns the settings document.
func (s *RedisStore) Load(ctx context.Context) (config.Settings, bool, error) {
	data, err := s.client.Get(ctx, s.settingsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return config.Settings{}, false, nil
	}
	if err != nil {
		return config.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}

	var cfg config.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return cfg, true, nil
}

// Save stores the settings document.
func (s *RedisStore) Save(ctx context.Context, cfg config.Settings) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.client.Set(ctx, s.settingsKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}

// WasProcessed checks if an event was already processed.
func (s *RedisStore) WasProcessed(ctx context.Context, eventKey string) bool {
	n, err := s.client.Exists(ctx, s.eventKey(eventKey)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkProcessed marks an event as processed for ttl.
func (s *RedisStore) MarkProcessed(ctx context.Context, eventKey string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.eventKey(eventKey), 1, ttl).Err(); err != nil {
		return fmt.Errorf("mark event: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis expires event keys itself.
func (*RedisStore) Cleanup(context.Context) error {
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
