package cache

import (
	"encoding/json"
	"fmt"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
)

// Key returns the static cache key for a request: its canonical JSON
// encoding. Module lists keep their order, so ["a","b"] and ["b","a"] are
// different keys.
func Key(req compiler.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	return string(data), nil
}

// flightKey identifies an in-flight compile: the request plus every option
// that can change its output.
func flightKey(req compiler.Request, opts compiler.Options) (string, error) {
	key, err := Key(req)
	if err != nil {
		return "", err
	}

	return key + "|" + opts.Fingerprint(), nil
}
