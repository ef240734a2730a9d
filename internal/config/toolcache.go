package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const ToolCacheVersion = 1

// ToolCache stores the last discovered tool catalog per server URL so that
// `tools --cached` can answer without a handshake. It is persisted
// alongside the active config file.
type ToolCache struct {
	path  string
	cache toolCacheFile
	mu    sync.RWMutex
}

type toolCacheFile struct {
	Version int                        `json:"version"`
	Servers map[string]ServerToolCache `json:"servers"`
}

// ServerToolCache stores cached tool data for a single server.
type ServerToolCache struct {
	ServerName string       `json:"serverName,omitempty"`
	Tools      []CachedTool `json:"tools"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// TotalTokens sums the token counts of every cached tool.
func (s ServerToolCache) TotalTokens() int {
	total := 0
	for _, t := range s.Tools {
		total += t.TokenCount
	}
	return total
}

// CachedTool stores a tool definition with its precomputed token count.
type CachedTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	TokenCount  int             `json:"tokenCount"`
}

// ToolCachePath returns the cache file path co-located with the active config.
func ToolCachePath(configPath string) (string, error) {
	if configPath != "" {
		expanded, err := expandHome(configPath)
		if err != nil {
			return "", err
		}
		return filepath.Join(filepath.Dir(expanded), "toolcache.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDir, "toolcache.json"), nil
}

// NewToolCache creates or loads a tool cache for the given config path.
func NewToolCache(configPath string) (*ToolCache, error) {
	path, err := ToolCachePath(configPath)
	if err != nil {
		return nil, err
	}
	tc := &ToolCache{
		path: path,
		cache: toolCacheFile{
			Version: ToolCacheVersion,
			Servers: make(map[string]ServerToolCache),
		},
	}
	tc.load()
	return tc, nil
}

// Update replaces the cached catalog for a server.
func (tc *ToolCache) Update(serverURL, serverName string, tools []CachedTool) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	cached := make([]CachedTool, len(tools))
	copy(cached, tools)
	tc.cache.Servers[serverURL] = ServerToolCache{
		ServerName: serverName,
		Tools:      cached,
		UpdatedAt:  time.Now(),
	}
	return tc.save()
}

// Get retrieves the cached catalog for a server.
func (tc *ToolCache) Get(serverURL string) (ServerToolCache, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	entry, ok := tc.cache.Servers[serverURL]
	return entry, ok
}

// Servers returns the cached server URLs in sorted order.
func (tc *ToolCache) Servers() []string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	urls := make([]string, 0, len(tc.cache.Servers))
	for u := range tc.cache.Servers {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Delete removes a server from the cache.
func (tc *ToolCache) Delete(serverURL string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, ok := tc.cache.Servers[serverURL]; !ok {
		return nil
	}
	delete(tc.cache.Servers, serverURL)
	return tc.save()
}

func (tc *ToolCache) load() {
	data, err := os.ReadFile(tc.path)
	if err != nil {
		return
	}

	var file toolCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}

	// Version mismatch, discard stale cache
	if file.Version != ToolCacheVersion {
		return
	}

	if file.Servers == nil {
		file.Servers = make(map[string]ServerToolCache)
	}
	tc.cache = file
}

func (tc *ToolCache) save() error {
	dir := filepath.Dir(tc.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(tc.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tool cache: %w", err)
	}

	tmpFile := tc.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}

	if err := os.Rename(tmpFile, tc.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("rename cache: %w", err)
	}

	return nil
}
