package codes

import (
	"context"
	"errors"

	"github.com/Norgate-AV/bundlecache/internal/compiler"
	"github.com/Norgate-AV/bundlecache/internal/config"
)

// Process exit codes
const (
	Success  = 0
	General  = 1
	Bundle   = 2
	Compress = 3
	Config   = 4
	Timeout  = 5
)

// ErrorCodes maps bundlecache exit codes to their descriptions
var ErrorCodes = map[int]string{
	Success:  "Success",
	General:  "General failure",
	Bundle:   "Bundle errors",
	Compress: "Compression failed",
	Config:   "Invalid configuration or request",
	Timeout:  "Timed out waiting for compile",
}

// ExitCode returns the exit code for err
func ExitCode(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, compiler.ErrBundle):
		return Bundle
	case errors.Is(err, compiler.ErrCompress):
		return Compress
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, compiler.ErrInvalidRequest),
		errors.Is(err, compiler.ErrInvalidCacheMode):
		return Config
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	default:
		return General
	}
}

// IsSuccess returns true if the exit code indicates a successful build
func IsSuccess(code int) bool {
	return code == Success
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
