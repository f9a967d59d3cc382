package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

const (
	pbkdf2Iterations = 100000
	keyLen           = 32
	saltLen          = 16
)

// FileConfig configures a FileStore.
type FileConfig struct {
	// Path of the credentials file (default: ~/.losctl/credentials.json)
	Path string `yaml:"path,omitempty"`

	// Passphrase enables AES-GCM encryption of every value. Prefer the
	// LOSCTL_STORAGE_PASSPHRASE environment variable over the config file.
	Passphrase string `yaml:"-"`
}

// fileDocument is the on-disk layout.
type fileDocument struct {
	Encrypted bool              `json:"encrypted"`
	Salt      string            `json:"salt,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Values    map[string]string `json:"values"`
}

// FileStore implements Store as a single JSON file with 0600 permissions.
// The file is re-read on every call so concurrent processes see each other's
// writes; the last writer wins.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string

	// derived key cache, valid for keySalt only
	key     []byte
	keySalt string
}

// DefaultFilePath returns ~/.losctl/credentials.json.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".losctl", "credentials.json")
	}
	return filepath.Join(home, ".losctl", "credentials.json")
}

// NewFileStore creates a file-backed store. The file is created on first write.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultFilePath()
	}
	return &FileStore{path: path, passphrase: cfg.Passphrase}, nil
}

// Path returns the credentials file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := doc.Values[key]
	if !ok {
		return "", false, nil
	}
	if !doc.Encrypted {
		return raw, true, nil
	}

	value, err := s.decrypt(doc.Salt, raw)
	if err != nil {
		return "", false, errors.NewStorageError(errors.ErrCodeStorageRead,
			"failed to decrypt stored credentials", err).
			WithSuggestion("Check LOSCTL_STORAGE_PASSPHRASE or run 'losctl auth logout' to discard them")
	}
	return value, true, nil
}

// Set stores value under key.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if s.passphrase != "" && !doc.Encrypted && len(doc.Values) > 0 {
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			"credentials file is not encrypted but a passphrase is configured", nil).
			WithSuggestion("Run 'losctl auth logout' to reset the file")
	}

	if s.passphrase != "" {
		if doc.Salt == "" {
			salt := make([]byte, saltLen)
			if _, err := io.ReadFull(rand.Reader, salt); err != nil {
				return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to generate salt", err)
			}
			doc.Salt = base64.StdEncoding.EncodeToString(salt)
		}
		doc.Encrypted = true
		value, err = s.encrypt(doc.Salt, value)
		if err != nil {
			return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to encrypt credentials", err)
		}
	}

	doc.Values[key] = value
	return s.save(doc)
}

// Delete removes key. The file itself is removed once it holds no values.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)

	if len(doc.Values) == 0 {
		if err := os.Remove(s.path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to remove credentials file", err)
		}
		return nil
	}
	return s.save(doc)
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{Values: map[string]string{}}

	data, err := os.ReadFile(s.path)
	if stderrors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to read credentials file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("credentials file %s is corrupt", s.path), err).
			WithSuggestion("Run 'losctl auth logout' to discard it")
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

// save writes doc atomically through a temp file in the same directory.
func (s *FileStore) save(doc *fileDocument) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to create credentials directory", err)
	}

	doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to encode credentials", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write credentials file", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to restrict credentials file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write credentials file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write credentials file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to replace credentials file", err)
	}
	return nil
}

func (s *FileStore) deriveKey(salt string) ([]byte, error) {
	if s.passphrase == "" {
		return nil, fmt.Errorf("credentials are encrypted but no passphrase is configured")
	}
	if s.key != nil && s.keySalt == salt {
		return s.key, nil
	}
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	s.key = pbkdf2.Key([]byte(s.passphrase), rawSalt, pbkdf2Iterations, keyLen, sha256.New)
	s.keySalt = salt
	return s.key, nil
}

func (s *FileStore) gcm(salt string) (cipher.AEAD, error) {
	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt seals plaintext with AES-GCM; the nonce is prepended.
func (s *FileStore) encrypt(salt, plaintext string) (string, error) {
	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *FileStore) decrypt(salt, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
