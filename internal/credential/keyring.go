// Package credential keeps client bearer tokens in the OS keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "shoplist"

// ErrNotFound is returned when no token is stored for a server.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes tokens keyed by server URL.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already-open keyring. Tests pass keyring.NewArrayKeyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the platform keyring, falling back to an
// encrypted file under ~/.config/shoplist/credentials.
func Open() (*Store, error) {
	fileDir := "~/.config/shoplist/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		fileDir = filepath.Join(home, ".config", "shoplist", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("shoplist-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

func tokenKey(serverURL string) string {
	return "token:" + serverURL
}

// Token returns the token stored for serverURL.
func (s *Store) Token(serverURL string) (string, error) {
	item, err := s.ring.Get(tokenKey(serverURL))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("token for %s: %w", serverURL, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting token for %s: %w", serverURL, err)
	}
	return string(item.Data), nil
}

// SetToken stores token for serverURL, replacing any previous one.
func (s *Store) SetToken(serverURL, token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   tokenKey(serverURL),
		Data:  []byte(token),
		Label: "shoplist token for " + serverURL,
	})
	if err != nil {
		return fmt.Errorf("setting token for %s: %w", serverURL, err)
	}
	return nil
}

// DeleteToken removes the token for serverURL. Deleting a missing token is
// not an error.
func (s *Store) DeleteToken(serverURL string) error {
	err := s.ring.Remove(tokenKey(serverURL))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token for %s: %w", serverURL, err)
	}
	return nil
}
