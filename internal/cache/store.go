package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// Store holds compiled artifacts by key.
type Store interface {
	// Get returns the artifact for key. A miss is (nil, false, nil).
	Get(key string) (*compiler.Artifact, bool, error)

	// Put stores artifact under key, replacing any previous one.
	Put(key string, artifact *compiler.Artifact) error

	// Stats returns the entry count and the total artifact size in bytes.
	Stats() (int, int64, error)

	// Clear removes every entry.
	Clear() error

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore keeps artifacts in process memory. Unbounded by default;
// WithMaxEntries switches to least-recently-used eviction.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*compiler.Artifact
	bounded *lru.Cache[string, *compiler.Artifact]
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
}

// WithMaxEntries bounds the store to n entries. n <= 0 means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.maxEntries = n
	}
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	var cfg memoryConfig
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	s := &MemoryStore{entries: make(map[string]*compiler.Artifact)}
	if cfg.maxEntries > 0 {
		// lru.New only fails for a non-positive size.
		bounded, _ := lru.New[string, *compiler.Artifact](cfg.maxEntries) //nolint:errcheck // size checked above
		s.bounded = bounded
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (*compiler.Artifact, bool, error) {
	if s.bounded != nil {
		artifact, ok := s.bounded.Get(key)
		return artifact, ok, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.entries[key]
	return artifact, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key string, artifact *compiler.Artifact) error {
	if s.bounded != nil {
		s.bounded.Add(key, artifact)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = artifact
	return nil
}

// Stats implements Store.
func (s *MemoryStore) Stats() (int, int64, error) {
	var size int64

	if s.bounded != nil {
		for _, artifact := range s.bounded.Values() {
			size += artifact.Size()
		}
		return s.bounded.Len(), size, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, artifact := range s.entries {
		size += artifact.Size()
	}
	return len(s.entries), size, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear() error {
	if s.bounded != nil {
		s.bounded.Purge()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*compiler.Artifact)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
