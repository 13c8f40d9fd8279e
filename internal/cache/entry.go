package cache

import (
	"time"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// Entry is the persisted form of a cached artifact
type Entry struct {
	// Key is the canonical request identity
	Key string `msgpack:"key"`

	// Fingerprint is the hex SHA-256 of Buffer
	Fingerprint string `msgpack:"fingerprint"`

	// Buffer is the compiled bundle
	Buffer []byte `msgpack:"buffer"`

	// Gzip is the gzip encoding of Buffer, empty when gzip was off
	Gzip []byte `msgpack:"gzip,omitempty"`

	// Timestamp when this entry was created
	Timestamp time.Time `msgpack:"timestamp"`
}

func newEntry(key string, artifact *compiler.Artifact) Entry {
	return Entry{
		Key:         key,
		Fingerprint: artifact.Fingerprint,
		Buffer:      artifact.Buffer,
		Gzip:        artifact.Gzip,
		Timestamp:   time.Now(),
	}
}

// Artifact converts the entry back to an artifact.
func (e Entry) Artifact() *compiler.Artifact {
	artifact := &compiler.Artifact{
		Buffer:      e.Buffer,
		Fingerprint: e.Fingerprint,
	}
	if len(e.Gzip) > 0 {
		artifact.Gzip = e.Gzip
	}
	return artifact
}
