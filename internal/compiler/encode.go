package compiler

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
)

// Artifact is the output of one successful compile. It is never modified
// after it is returned.
type Artifact struct {
	// Buffer holds the compiled source
	Buffer []byte

	// Gzip holds the gzip encoding of Buffer, nil when gzip was not requested
	Gzip []byte

	// Fingerprint is the hex SHA-256 of Buffer
	Fingerprint string
}

// Size returns the number of bytes held by the artifact.
func (a *Artifact) Size() int64 {
	return int64(len(a.Buffer) + len(a.Gzip))
}

// Fingerprint returns the hex-encoded SHA-256 of src.
func Fingerprint(src []byte) string {
	return digest.SHA256.FromBytes(src).Encoded()
}

// Gzip compresses src at the default level.
func Gzip(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		zw.Close()
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
