// Package cache is a time-bounded key/value store for expensive external
// responses. Entries survive across scans up to the age limit the reader
// supplies.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache stores opaque byte values keyed by (namespace, key), where the
// namespace is normally a collector id. When a directory is configured the
// values persist on disk; otherwise they live in memory only.
type Cache struct {
	dir string

	mu  sync.RWMutex
	mem map[string]entry
}

type entry struct {
	data   []byte
	stored time.Time
}

// New returns a cache rooted at dir. An empty dir selects a memory-only
// cache.
func New(dir string) (*Cache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Cache{dir: dir, mem: make(map[string]entry)}, nil
}

// Put stores the value and stamps it with the current wall-clock time,
// overwriting any previous entry.
func (c *Cache) Put(namespace, key string, value []byte) error {
	if c.dir == "" {
		c.mu.Lock()
		c.mem[namespace+"\x00"+key] = entry{data: value, stored: time.Now()}
		c.mu.Unlock()
		return nil
	}

	path, err := c.path(namespace, key)
	if err != nil {
		return err
	}
	// Write-then-rename so concurrent readers of the same key never see a
	// partial value.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get returns the stored value, or nil when the entry is missing or older
// than maxAge.
func (c *Cache) Get(namespace, key string, maxAge time.Duration) []byte {
	if c.dir == "" {
		c.mu.RLock()
		ent, ok := c.mem[namespace+"\x00"+key]
		c.mu.RUnlock()
		if !ok || time.Since(ent.stored) > maxAge {
			return nil
		}
		return ent.data
	}

	path, err := c.path(namespace, key)
	if err != nil {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if time.Since(info.ModTime()) > maxAge {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

// path shards entries per namespace so collector keyspaces cannot collide.
func (c *Cache) path(namespace, key string) (string, error) {
	dir := filepath.Join(c.dir, sanitize(namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:])), nil
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "default"
	}
	return string(out)
}
