package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache provides persistent, file-based caching of raw response bodies.
// Each entry is stored as a JSON file keyed by a SHA-256 hash of the URL.
type DiskCache struct {
	cacheDir string
	cacheTTL time.Duration
	now      func() time.Time
}

// diskCacheEntry wraps a response body with an expiration timestamp.
type diskCacheEntry struct {
	URL       string          `json:"url"`
	Body      json.RawMessage `json:"body"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewDiskCache creates a disk cache in the given directory with the specified
// TTL, creating the directory if needed.
func NewDiskCache(cacheDir string, cacheTTL time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	return &DiskCache{
		cacheDir: cacheDir,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}, nil
}

// Get returns the cached body for url and true if present and not expired.
func (cache *DiskCache) Get(url string) ([]byte, bool) {
	cacheFilePath := cache.pathFor(url)

	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		return nil, false
	}

	var entry diskCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if cache.now().After(entry.ExpiresAt) {
		_ = os.Remove(cacheFilePath)
		return nil, false
	}

	return entry.Body, true
}

// Set stores body for url. Bodies that are not valid JSON are not cached.
func (cache *DiskCache) Set(url string, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("refusing to cache non-JSON body for %s", url)
	}

	entry := diskCacheEntry{
		URL:       url,
		Body:      json.RawMessage(body),
		ExpiresAt: cache.now().Add(cache.cacheTTL),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Write through a temp file so readers never see a partial entry.
	cacheFilePath := cache.pathFor(url)
	tempFile, err := os.CreateTemp(cache.cacheDir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file %s: %w", cacheFilePath, err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file %s: %w", cacheFilePath, err)
	}
	if err := os.Rename(tempPath, cacheFilePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file %s: %w", cacheFilePath, err)
	}

	return nil
}

// Clear removes every cache entry and returns how many were deleted. Other
// files in the directory are left alone.
func (cache *DiskCache) Clear() (int, error) {
	entries, err := os.ReadDir(cache.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory %s: %w", cache.cacheDir, err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isCacheFile(name) {
			continue
		}
		if err := os.Remove(filepath.Join(cache.cacheDir, name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove cache file %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// isCacheFile reports whether name is an entry written by Set: a hex SHA-256
// key with a .json suffix, or a leftover entry-*.tmp file.
func isCacheFile(name string) bool {
	if strings.HasPrefix(name, "entry-") && strings.HasSuffix(name, ".tmp") {
		return true
	}
	key, ok := strings.CutSuffix(name, ".json")
	if !ok || len(key) != sha256.Size*2 {
		return false
	}
	for _, r := range key {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// Dir returns the cache directory.
func (cache *DiskCache) Dir() string {
	return cache.cacheDir
}

func (cache *DiskCache) keyFor(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}

func (cache *DiskCache) pathFor(url string) string {
	return filepath.Join(cache.cacheDir, cache.keyFor(url)+".json")
}
