// Package storage persists the session credentials between invocations.
//
// A Store is a flat string key/value store. Four backends are provided:
// MemoryStore (tests and one-shot use), FileStore (the default, optionally
// encrypted at rest), RedisStore (shared across machines) and VaultStore
// (HashiCorp Vault KV v2).
package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// Keys written by the auth flow. They are always written and cleared together.
const (
	KeyToken        = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendVault  = "vault"
)

// Store is a durable string key/value store.
//
// Implementations must be safe for concurrent use. Get reports ok=false for a
// missing key; it is not an error. Delete of a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores with a remote dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Credentials is the persisted session.
type Credentials struct {
	Token        string
	RefreshToken string
	// User is the JSON-encoded user record.
	User []byte
}

// Save writes all credential keys. An empty refresh token removes the stored one.
func Save(ctx context.Context, s Store, c Credentials) error {
	if err := s.Set(ctx, KeyToken, c.Token); err != nil {
		return err
	}
	if c.RefreshToken != "" {
		if err := s.Set(ctx, KeyRefreshToken, c.RefreshToken); err != nil {
			return err
		}
	} else if err := s.Delete(ctx, KeyRefreshToken); err != nil {
		return err
	}
	return s.Set(ctx, KeyUser, string(c.User))
}

// Load reads the stored credentials. It returns nil without error when either
// the token or the user record is missing.
func Load(ctx context.Context, s Store) (*Credentials, error) {
	token, ok, err := s.Get(ctx, KeyToken)
	if err != nil || !ok || token == "" {
		return nil, err
	}
	user, ok, err := s.Get(ctx, KeyUser)
	if err != nil || !ok || user == "" {
		return nil, err
	}
	refresh, _, err := s.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	return &Credentials{Token: token, RefreshToken: refresh, User: []byte(user)}, nil
}

// Clear removes every credential key. All deletions are attempted.
func Clear(ctx context.Context, s Store) error {
	var errs []error
	for _, key := range []string{KeyToken, KeyRefreshToken, KeyUser} {
		if err := s.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Config selects and configures a backend.
type Config struct {
	Backend string      `yaml:"backend" validate:"omitempty,oneof=memory file redis vault"`
	File    FileConfig  `yaml:"file,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
	Vault   VaultConfig `yaml:"vault,omitempty"`
}

// Open builds the Store named by cfg.Backend. An empty backend means file.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(cfg.File)
	case BackendRedis:
		return NewRedisStore(cfg.Redis)
	case BackendVault:
		return NewVaultStore(cfg.Vault)
	default:
		return nil, errors.NewConfigError(fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}
