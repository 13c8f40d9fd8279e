package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifact(t *testing.T) {
	tests := []struct {
		name      string
		gzip      bool
		wantFiles []string
	}{
		{
			name:      "bundle only",
			wantFiles: []string{"bundle.js"},
		},
		{
			name:      "bundle and gzip",
			gzip:      true,
			wantFiles: []string{"bundle.js", "bundle.js.gz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "dist", "bundle.js")
			a := artifact("console.log('bundle');", tt.gzip)

			written, err := WriteArtifact(a, out)
			require.NoError(t, err)

			require.Len(t, written, len(tt.wantFiles))
			for i, name := range tt.wantFiles {
				assert.Equal(t, filepath.Join(dir, "dist", name), written[i])
				assert.FileExists(t, written[i])
			}

			content, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, a.Buffer, content)

			if tt.gzip {
				gz, err := os.ReadFile(out + GzipSuffix)
				require.NoError(t, err)
				assert.Equal(t, a.Gzip, gz)
			}

			entries, err := os.ReadDir(filepath.Join(dir, "dist"))
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.wantFiles), "no temp files should be left behind")
		})
	}
}

func TestWriteArtifact_Overwrites(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bundle.js")

	_, err := WriteArtifact(artifact("old", false), out)
	require.NoError(t, err)
	_, err = WriteArtifact(artifact("new", false), out)
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
