package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	credentialsDir  = ".config/mcpstream"
	credentialsFile = ".credentials.json"
)

// FileStore stores credentials in a 0600 JSON file keyed by server URL.
// It is the fallback for systems without a usable keychain.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a new file-based credential store.
func NewFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	path := filepath.Join(home, credentialsDir, credentialsFile)
	return &FileStore{path: path}, nil
}

// NewFileStoreAt creates a file store at a specific path (for testing).
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

// Get retrieves the secret for a server by URL.
func (s *FileStore) Get(serverURL string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secrets, err := s.load()
	if err != nil {
		return "", err
	}
	return secrets[serverURL], nil
}

// Put stores the secret for a server.
func (s *FileStore) Put(serverURL, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.load()
	if err != nil {
		return err
	}
	secrets[serverURL] = secret
	return s.save(secrets)
}

// Delete removes the secret for a server.
func (s *FileStore) Delete(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := secrets[serverURL]; !ok {
		return nil
	}
	delete(secrets, serverURL)
	return s.save(secrets)
}

// List returns the server URLs with a stored secret, sorted.
func (s *FileStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secrets, err := s.load()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(secrets))
	for u := range secrets {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// load reads credentials from the file (caller must hold lock).
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	secrets := map[string]string{}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return secrets, nil
}

// save writes credentials to the file (caller must hold lock).
func (s *FileStore) save(secrets map[string]string) error {
	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	// Write to temp file first
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename credentials: %w", err)
	}

	return nil
}
