package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

// DefaultTimeout bounds every request, including the shared refresh call
const DefaultTimeout = 30 * time.Second

// Config holds API client configuration.
type Config struct {
	// BaseURL is the LOS backend address (required)
	// Example: "https://los.example.com/api"
	BaseURL string

	// Timeout bounds each request (default: 30s)
	Timeout time.Duration

	// UserAgent is sent with every request
	UserAgent string

	// TLS configures custom CAs and client certificates (optional)
	TLS *TLSConfig
}

// TLSConfig holds TLS/mTLS configuration.
type TLSConfig struct {
	// CACert is the path to a PEM CA bundle
	CACert string `yaml:"ca_cert,omitempty"`

	// ClientCert is the path to the client certificate (for mTLS)
	ClientCert string `yaml:"client_cert,omitempty"`

	// ClientKey is the path to the client private key (for mTLS)
	ClientKey string `yaml:"client_key,omitempty"`

	// InsecureSkipVerify disables certificate verification (NOT for production)
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.NewConfigError("api base URL is required", nil)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewConfigError(fmt.Sprintf("invalid api base URL %q", c.BaseURL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewConfigError(fmt.Sprintf("unsupported api URL scheme %q", u.Scheme), nil)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// newHTTPClient creates an HTTP client with TLS configuration.
func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if tlsCfg := cfg.TLS; tlsCfg != nil {
		if tlsCfg.CACert != "" {
			caCert, err := os.ReadFile(tlsCfg.CACert)
			if err != nil {
				return nil, errors.NewConfigError("failed to read CA cert", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, errors.NewConfigError("failed to parse CA cert "+tlsCfg.CACert, nil)
			}
			transport.TLSClientConfig.RootCAs = pool
		}

		if tlsCfg.ClientCert != "" && tlsCfg.ClientKey != "" {
			clientCert, err := tls.LoadX509KeyPair(tlsCfg.ClientCert, tlsCfg.ClientKey)
			if err != nil {
				return nil, errors.NewConfigError("failed to load client cert/key", err)
			}
			transport.TLSClientConfig.Certificates = []tls.Certificate{clientCert}
		}

		transport.TLSClientConfig.InsecureSkipVerify = tlsCfg.InsecureSkipVerify
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}
