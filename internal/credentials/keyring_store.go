package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the system keychain.
	keyringService = "mcpstream"

	// keyringIndexKey is the key used to store the list of server URLs.
	keyringIndexKey = "_index"
)

// KeyringStore stores credentials in the system keychain.
type KeyringStore struct {
	mu sync.RWMutex
}

// NewKeyringStore creates a new keyring-based credential store.
// Returns an error if the keyring is not available.
func NewKeyringStore() (*KeyringStore, error) {
	// Test keyring availability by trying to read a non-existent key
	_, err := keyring.Get(keyringService, "_test_availability")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}

	return &KeyringStore{}, nil
}

// Get retrieves the secret for a server by URL.
func (s *KeyringStore) Get(serverURL string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, err := keyring.Get(keyringService, urlToKey(serverURL))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return secret, nil
}

// Put stores the secret for a server.
func (s *KeyringStore) Put(serverURL, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(keyringService, urlToKey(serverURL), secret); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}

	// Update index
	return s.addToIndex(serverURL)
}

// Delete removes the secret for a server.
func (s *KeyringStore) Delete(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(keyringService, urlToKey(serverURL)); err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring delete: %w", err)
		}
	}

	// Update index
	return s.removeFromIndex(serverURL)
}

// List returns the server URLs with a stored secret.
func (s *KeyringStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadIndex()
}

// loadIndex reads the list of stored server URLs (caller must hold lock).
func (s *KeyringStore) loadIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("keyring get index: %w", err)
	}

	if data == "" {
		return []string{}, nil
	}

	var urls []string
	if err := json.Unmarshal([]byte(data), &urls); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	return urls, nil
}

// saveIndex writes the list of stored server URLs (caller must hold lock).
func (s *KeyringStore) saveIndex(urls []string) error {
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := keyring.Set(keyringService, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("keyring set index: %w", err)
	}

	return nil
}

// addToIndex adds a URL to the index (caller must hold lock).
func (s *KeyringStore) addToIndex(url string) error {
	urls, err := s.loadIndex()
	if err != nil {
		return err
	}

	for _, u := range urls {
		if u == url {
			return nil
		}
	}

	return s.saveIndex(append(urls, url))
}

// removeFromIndex removes a URL from the index (caller must hold lock).
func (s *KeyringStore) removeFromIndex(url string) error {
	urls, err := s.loadIndex()
	if err != nil {
		return err
	}

	filtered := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != url {
			filtered = append(filtered, u)
		}
	}

	return s.saveIndex(filtered)
}

// urlToKey converts a server URL to a keyring key.
func urlToKey(url string) string {
	key := strings.ReplaceAll(url, "://", "_")
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, ":", "_")
	return key
}
