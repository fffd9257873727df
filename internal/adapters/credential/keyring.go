// Package credential keeps secrets such as the Gotify token in the system keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// GotifyTokenKey is the keyring item holding the Gotify application token.
const GotifyTokenKey = "gotify-token"

// Store reads and writes credentials in one keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the keyring for appName. fileDir backs the encrypted file fallback.
func Open(appName, fileDir string) (*Store, error) {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = "daybox"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: appName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(appName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get returns the value stored under key; a missing item yields "" and no error.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("credential %q: empty value", key)
	}
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: key}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes key; removing a missing item is not an error.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
