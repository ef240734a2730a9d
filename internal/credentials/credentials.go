// Package credentials resolves the pre-issued API credential sent to MCP
// servers and stores it between runs.
package credentials

import (
	"fmt"
	"os"
)

// EnvCredential is consulted when no per-server variable is configured or set.
const EnvCredential = "MCPSTREAM_CREDENTIAL"

// Store persists one secret per server URL.
type Store interface {
	// Get returns the secret for serverURL, or "" if none is stored.
	Get(serverURL string) (string, error)

	// Put stores the secret for serverURL, replacing any previous one.
	Put(serverURL, secret string) error

	// Delete removes the secret for serverURL. Missing entries are not an error.
	Delete(serverURL string) error

	// List returns the server URLs that have a stored secret.
	List() ([]string, error)
}

var (
	_ Store = (*KeyringStore)(nil)
	_ Store = (*FileStore)(nil)
)

// StoreMode represents the credential storage mode.
type StoreMode string

const (
	// StoreModeAuto uses keyring if available, falls back to file.
	StoreModeAuto StoreMode = "auto"

	// StoreModeKeyring uses the system keychain.
	StoreModeKeyring StoreMode = "keyring"

	// StoreModeFile uses a JSON file.
	StoreModeFile StoreMode = "file"
)

// NewStore creates a credential store based on the mode.
func NewStore(mode StoreMode) (Store, error) {
	switch mode {
	case StoreModeKeyring:
		store, err := NewKeyringStore()
		if err != nil {
			return nil, err
		}
		return store, nil

	case StoreModeFile:
		return NewFileStore()

	case StoreModeAuto, "":
		// Try keyring first, fall back to file
		store, err := NewKeyringStore()
		if err == nil {
			return store, nil
		}
		return NewFileStore()

	default:
		return nil, fmt.Errorf("unknown credential store mode %q", mode)
	}
}

// Source says where a resolved credential came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceEnv    Source = "env"
	SourceStore  Source = "store"
	SourceGlobal Source = "global-env"
)

// Resolve finds the credential for serverURL. Precedence:
//  1. the variable named by envVar, when set
//  2. MCPSTREAM_CREDENTIAL
//  3. the store (nil store skips this step)
//
// Finding nothing is not an error; the server may not need auth.
func Resolve(serverURL, envVar string, store Store) (string, Source, error) {
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v, SourceEnv, nil
		}
	}
	if v := os.Getenv(EnvCredential); v != "" {
		return v, SourceGlobal, nil
	}
	if store == nil {
		return "", SourceNone, nil
	}

	secret, err := store.Get(serverURL)
	if err != nil {
		return "", SourceNone, fmt.Errorf("load stored credential: %w", err)
	}
	if secret == "" {
		return "", SourceNone, nil
	}
	return secret, SourceStore, nil
}

// Mask renders a secret for display, keeping only its last four characters.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
