package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// GzipSuffix is appended to the output path for the gzip encoding.
const GzipSuffix = ".gz"

// WriteArtifact writes the bundle to out and, when present, its gzip
// encoding to out + GzipSuffix. It returns the paths written.
func WriteArtifact(artifact *compiler.Artifact, out string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeFile(out, artifact.Buffer); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}
	written := []string{out}

	if artifact.Gzip != nil {
		gzPath := out + GzipSuffix
		if err := writeFile(gzPath, artifact.Gzip); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", gzPath, err)
		}
		written = append(written, gzPath)
	}

	return written, nil
}

// writeFile replaces dst atomically so readers never see a partial bundle.
func writeFile(dst string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dst)
}
