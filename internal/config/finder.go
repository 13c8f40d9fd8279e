package config

import (
	"os"
	"path/filepath"
)

// LocalConfigPrefix is the file name prefix of project config files
const LocalConfigPrefix = ".bundlecache."

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range configExts {
			path := filepath.Join(dir, LocalConfigPrefix+ext)

			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
