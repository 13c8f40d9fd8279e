package compiler

import "errors"

var (
	// ErrBundle is returned when the bundler fails to build the module graph.
	ErrBundle = errors.New("bundle failed")

	// ErrCompress is returned when gzip compression of the output fails.
	ErrCompress = errors.New("compression failed")

	// ErrInvalidRequest is returned when a request names nothing to bundle.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidCacheMode is returned for an unrecognised cache mode.
	ErrInvalidCacheMode = errors.New("invalid cache mode")
)
