package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".bundlecache"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "bundles"
)

// BoltStore persists artifacts in a BoltDB file so the static cache survives
// restarts. Artifacts decoded during this process are kept in memory and
// returned as the same instance on every hit.
type BoltStore struct {
	db   *bbolt.DB
	root string // Root directory for cache (.bundlecache/)

	mu     sync.RWMutex
	loaded map[string]*compiler.Artifact
}

// NewBoltStore opens the store in cacheDir.
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func NewBoltStore(cacheDir string) (*BoltStore, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &BoltStore{
		db:     db,
		root:   cacheDir,
		loaded: make(map[string]*compiler.Artifact),
	}, nil
}

// Persistent reports that entries survive a restart.
func (s *BoltStore) Persistent() bool {
	return true
}

// Root returns the cache directory.
func (s *BoltStore) Root() string {
	return s.root
}

// Close closes the cache database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Get implements Store.
func (s *BoltStore) Get(key string) (*compiler.Artifact, bool, error) {
	s.mu.RLock()
	artifact, ok := s.loaded[key]
	s.mu.RUnlock()
	if ok {
		return artifact, true, nil
	}

	var entry Entry
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(key))
		if data == nil {
			return nil // Cache miss
		}

		found = true
		return msgpack.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if !found {
		return nil, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the first decoded instance if another reader raced us.
	if existing, ok := s.loaded[key]; ok {
		return existing, true, nil
	}
	artifact = entry.Artifact()
	s.loaded[key] = artifact

	return artifact, true, nil
}

// Put implements Store.
func (s *BoltStore) Put(key string, artifact *compiler.Artifact) error {
	data, err := msgpack.Marshal(newEntry(key, artifact))
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	s.mu.Lock()
	s.loaded[key] = artifact
	s.mu.Unlock()

	return nil
}

// Stats returns the number of entries and the total artifact size.
func (s *BoltStore) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(_, v []byte) error {
			var entry Entry
			if err := msgpack.Unmarshal(v, &entry); err != nil {
				return err
			}

			count++
			totalSize += int64(len(entry.Buffer) + len(entry.Gzip))
			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, totalSize, nil
}

// Clear removes all cache entries
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = make(map[string]*compiler.Artifact)
	s.mu.Unlock()

	return nil
}
