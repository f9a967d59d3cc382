// Package config loads the losctl configuration from ~/.losctl/config.yaml,
// applies environment overrides and validates the result.
//
// Secrets (storage passphrase, Redis password, Vault token) are never read
// from or written to the file. They come from the environment only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/losctl/internal/api"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/storage"
	"github.com/felixgeelhaar/losctl/internal/validate"
)

// Environment variables that override the file.
const (
	EnvConfig            = "LOSCTL_CONFIG"
	EnvAPIURL            = "LOSCTL_API_URL"
	EnvStorage           = "LOSCTL_STORAGE"
	EnvLogLevel          = "LOSCTL_LOG_LEVEL"
	EnvStoragePassphrase = "LOSCTL_STORAGE_PASSPHRASE"
	EnvRedisPassword     = "LOSCTL_REDIS_PASSWORD"
	EnvVaultToken        = "VAULT_TOKEN"
)

// DefaultAPIURL is used when neither the file nor the environment set one.
const DefaultAPIURL = "http://localhost:8080/api"

// Config is the full losctl configuration.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Storage storage.Config `yaml:"storage"`
	Log     LogConfig      `yaml:"log"`
	Output  OutputConfig   `yaml:"output"`
}

// APIConfig points losctl at a LOS backend.
type APIConfig struct {
	BaseURL string         `yaml:"base_url" validate:"required,http_url"`
	Timeout time.Duration  `yaml:"timeout,omitempty" validate:"gte=0"`
	TLS     *api.TLSConfig `yaml:"tls,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json console"`
}

type OutputConfig struct {
	Format  string `yaml:"format,omitempty" validate:"omitempty,oneof=text json yaml"`
	NoColor bool   `yaml:"no_color,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: api.DefaultTimeout,
		},
		Storage: storage.Config{
			Backend: storage.BackendFile,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Dir returns ~/.losctl.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewConfigError("failed to get home directory", err)
	}
	return filepath.Join(home, ".losctl"), nil
}

// Path returns the config file path: LOSCTL_CONFIG if set, otherwise
// ~/.losctl/config.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path (or the default path when empty), applies environment
// overrides and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("failed to parse %s", path), err)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.NewConfigError(fmt.Sprintf("failed to read %s", path), err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside
// tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStoragePassphrase); ok {
		c.Storage.File.Passphrase = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := lookup(EnvVaultToken); ok {
		c.Storage.Vault.Token = v
	}
}

// Validate checks field constraints and the backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Validator().Struct(c); err != nil {
		return errors.NewConfigError("invalid configuration: "+validate.Message(err), err)
	}

	switch c.Storage.Backend {
	case storage.BackendRedis:
		if c.Storage.Redis.URL == "" && c.Storage.Redis.Addr == "" {
			return errors.NewConfigError("storage.redis requires url or addr", nil)
		}
	case storage.BackendVault:
		if c.Storage.Vault.Address == "" {
			return errors.NewConfigError("storage.vault requires address", nil)
		}
	}
	return nil
}

// APIClientConfig converts the api section into an api.Config.
func (c *Config) APIClientConfig(userAgent string) api.Config {
	return api.Config{
		BaseURL:   c.API.BaseURL,
		Timeout:   c.API.Timeout,
		UserAgent: userAgent,
		TLS:       c.API.TLS,
	}
}

// Save writes c to path as YAML with 0600 permissions. Secrets are omitted by
// their yaml:"-" tags.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.NewConfigError("failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.NewConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.NewConfigError("failed to write config", err)
	}
	return nil
}

// Get returns the value at a dotted key, e.g. "api.base_url".
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.timeout":
		return c.API.Timeout.String(), nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.file.path":
		return c.Storage.File.Path, nil
	case "storage.redis.url":
		return c.Storage.Redis.URL, nil
	case "storage.redis.addr":
		return c.Storage.Redis.Addr, nil
	case "storage.redis.prefix":
		return c.Storage.Redis.Prefix, nil
	case "storage.vault.address":
		return c.Storage.Vault.Address, nil
	case "log.level":
		return c.Log.Level, nil
	case "log.format":
		return c.Log.Format, nil
	case "output.format":
		return c.Output.Format, nil
	case "output.no_color":
		return strconv.FormatBool(c.Output.NoColor), nil
	default:
		return "", errors.NewConfigError(fmt.Sprintf("unknown configuration key: %s", key), nil)
	}
}

// Set assigns the value at a dotted key and revalidates.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api.base_url":
		c.API.BaseURL = value
	case "api.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid duration %q", value), err)
		}
		c.API.Timeout = d
	case "storage.backend":
		c.Storage.Backend = value
	case "storage.file.path":
		c.Storage.File.Path = value
	case "storage.redis.url":
		c.Storage.Redis.URL = value
	case "storage.redis.addr":
		c.Storage.Redis.Addr = value
	case "storage.redis.prefix":
		c.Storage.Redis.Prefix = value
	case "storage.vault.address":
		c.Storage.Vault.Address = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "output.format":
		c.Output.Format = value
	case "output.no_color":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid boolean %q", value), err)
		}
		c.Output.NoColor = b
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown configuration key: %s", key), nil)
	}
	return c.Validate()
}
