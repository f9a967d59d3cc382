package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/storage"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)
	assert.Equal(t, storage.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
api:
  base_url: https://los.example.com/api
  timeout: 10s
storage:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "team:"
    ttl: 12h
log:
  level: debug
output:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://los.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, storage.BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "team:", cfg.Storage.Redis.Prefix)
	assert.Equal(t, 12*time.Hour, cfg.Storage.Redis.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "api:\n  base_url: https://file.example.com\n")
	t.Setenv(EnvAPIURL, "https://env.example.com/api")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvStoragePassphrase, "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Storage.File.Passphrase)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "api: [", "failed to parse"},
		{"bad url", "api:\n  base_url: not a url\n", "base_url"},
		{"unknown backend", "storage:\n  backend: s3\n", "backend must be one of"},
		{"redis without address", "storage:\n  backend: redis\n", "requires url or addr"},
		{"vault without address", "storage:\n  backend: vault\n", "requires address"},
		{"bad output format", "output:\n  format: xml\n", "format must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfig, errors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv_SecretsAndBackend(t *testing.T) {
	env := map[string]string{
		EnvStorage:       "Vault",
		EnvVaultToken:    "hvs.token",
		EnvRedisPassword: "redis-pass",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, storage.BackendVault, cfg.Storage.Backend)
	assert.Equal(t, "hvs.token", cfg.Storage.Vault.Token)
	assert.Equal(t, "redis-pass", cfg.Storage.Redis.Password)
}

func TestSave_OmitsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Storage.File.Passphrase = "s3cret"
	cfg.Storage.Vault.Token = "hvs.token"
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, string(data), "hvs.token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.BaseURL, loaded.API.BaseURL)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.base_url", "https://los.example.com"))
	require.NoError(t, cfg.Set("api.timeout", "45s"))
	require.NoError(t, cfg.Set("output.no_color", "true"))

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "https://los.example.com", v)

	v, err = cfg.Get("api.timeout")
	require.NoError(t, err)
	assert.Equal(t, "45s", v)

	v, err = cfg.Get("output.no_color")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	assert.Error(t, cfg.Set("api.timeout", "soon"))
	assert.Error(t, cfg.Set("output.format", "xml"))
	assert.Error(t, cfg.Set("providers.default", "x"))
	_, err = cfg.Get("providers.default")
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "/tmp/custom.yaml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)

	t.Setenv(EnvConfig, "")
	p, err = Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".losctl", "config.yaml"), filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p)))
}

func TestAPIClientConfig(t *testing.T) {
	cfg := Default()
	ac := cfg.APIClientConfig("losctl/1.0")
	assert.Equal(t, cfg.API.BaseURL, ac.BaseURL)
	assert.Equal(t, "losctl/1.0", ac.UserAgent)
}
