package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// VaultConfig configures a VaultStore.
type VaultConfig struct {
	// Address is the Vault server address
	// Example: "https://vault.example.com:8200"
	Address string `yaml:"address,omitempty"`

	// Token can also be set via the VAULT_TOKEN environment variable
	Token string `yaml:"-"`

	// MountPath is the KV v2 mount path (default: "secret")
	MountPath string `yaml:"mount_path,omitempty"`

	// SecretPath holds all credential keys (default: "losctl/session")
	SecretPath string `yaml:"secret_path,omitempty"`

	// Namespace is the Vault namespace (optional, Enterprise feature)
	Namespace string `yaml:"namespace,omitempty"`

	// CACert is the path to a PEM CA bundle (optional)
	CACert string `yaml:"ca_cert,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// VaultStore implements Store on a single Vault KV v2 secret. Every key is a
// field of that secret; writes read-modify-write the whole secret.
type VaultStore struct {
	mu sync.Mutex

	address    string
	token      string
	mountPath  string
	secretPath string
	namespace  string
	httpClient *http.Client
}

// NewVaultStore creates a Vault-backed store.
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	if cfg.Address == "" {
		return nil, errors.NewConfigError("vault address is required", nil)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, errors.NewConfigError("vault token is required (set via VAULT_TOKEN)", nil)
	}

	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = "losctl/session"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient, err := vaultHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	return &VaultStore{
		address:    strings.TrimRight(cfg.Address, "/"),
		token:      token,
		mountPath:  strings.Trim(cfg.MountPath, "/"),
		secretPath: strings.Trim(cfg.SecretPath, "/"),
		namespace:  cfg.Namespace,
		httpClient: httpClient,
	}, nil
}

func vaultHTTPClient(cfg VaultConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, errors.NewConfigError("failed to read vault CA cert", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.NewConfigError("failed to parse vault CA cert", nil)
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

// Get returns the secret field named key.
func (s *VaultStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set writes the secret field named key.
func (s *VaultStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(ctx)
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(ctx, data)
}

// Delete removes the secret field named key.
func (s *VaultStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.write(ctx, data)
}

// Ping checks Vault's health endpoint.
func (s *VaultStore) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, s.address+"/v1/sys/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageRead, "vault is unreachable", err)
	}
	defer resp.Body.Close()

	// 429 is a healthy standby node.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusTooManyRequests {
		return errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("vault health check returned status %d", resp.StatusCode), nil)
	}
	return nil
}

// read fetches the latest version of the secret. A missing or deleted secret
// reads as empty.
func (s *VaultStore) read(ctx context.Context) (map[string]string, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.dataURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to read secret from vault", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return map[string]string{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("failed to read secret (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var response struct {
		Data struct {
			Data map[string]string `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to decode secret response", err)
	}
	if response.Data.Data == nil {
		return map[string]string{}, nil
	}
	return response.Data.Data, nil
}

func (s *VaultStore) write(ctx context.Context, data map[string]string) error {
	// KV v2 requires data to be wrapped in a "data" field
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to marshal secret data", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.dataURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write secret to vault", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("failed to write secret (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}
	return nil
}

// dataURL is the KV v2 data path: /v1/{mount}/data/{path}
func (s *VaultStore) dataURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s", s.address, s.mountPath, s.secretPath)
}

func (s *VaultStore) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to create vault request", err)
	}
	req.Header.Set("X-Vault-Token", s.token)
	req.Header.Set("Content-Type", "application/json")
	if s.namespace != "" {
		req.Header.Set("X-Vault-Namespace", s.namespace)
	}
	return req, nil
}
