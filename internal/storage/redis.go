package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// DefaultRedisPrefix namespaces credential keys in a shared Redis.
const DefaultRedisPrefix = "losctl:"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB. Example: redis://localhost:6379/0
	URL      string        `yaml:"url,omitempty"`
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db,omitempty" validate:"gte=0"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to the Redis described by cfg. No round trip is made.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.NewConfigError("invalid redis url", err)
		}
		opts = parsed
	} else {
		if cfg.Addr == "" {
			return nil, errors.NewConfigError("redis storage requires storage.redis.url or storage.redis.addr", nil)
		}
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. ttl <= 0 stores keys without expiry.
func NewRedisStoreWithClient(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to read from redis", err)
	}
	return val, true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write to redis", err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to delete from redis", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageRead, "redis is unreachable", err)
	}
	return nil
}
