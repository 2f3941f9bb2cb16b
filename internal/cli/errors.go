package cli

import (
	"context"
	"errors"

	"github.com/roach88/dirstore/internal/codec"
	"github.com/roach88/dirstore/internal/record"
	"github.com/roach88/dirstore/internal/safename"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Configuration could not be loaded or is invalid
	ErrCodeNotFound    = "E005" // Key or file not found
	ErrCodeWriteFailed = "E007" // Filesystem write error
	ErrCodeCancelled   = "E008" // Interrupted

	// Store errors
	ErrCodeInvalidKey   = "E201" // Key empty or not representable as a file name
	ErrCodeKeyExists    = "E202" // Set without --override on an existing key
	ErrCodeKeyCollision = "E203" // Key shares a file name with a different stored key
	ErrCodeLockTimeout  = "E204" // Per-key lock not acquired in time
	ErrCodeInvalidValue = "E205" // Value cannot be parsed or encoded
	ErrCodeRefused      = "E206" // Destructive command without confirmation

	// Snapshot errors
	ErrCodeSnapshot = "E301" // Snapshot could not be opened, read or written
)

// errorCode maps an error to its CLI error code.
func errorCode(err error) string {
	switch {
	case safename.IsInvalidKey(err):
		return ErrCodeInvalidKey
	case record.IsKeyExists(err):
		return ErrCodeKeyExists
	case record.IsKeyCollision(err):
		return ErrCodeKeyCollision
	case record.IsLockTimeout(err):
		return ErrCodeLockTimeout
	case codec.IsCodecError(err):
		return ErrCodeInvalidValue
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	default:
		return ErrCodeGeneric
	}
}

// storeFailure reports a store error through f and returns the matching
// ExitError. Caller mistakes (bad key, existing key, unencodable value)
// exit with ExitFailure; everything else is a command error.
func storeFailure(f *OutputFormatter, message string, err error) error {
	code := errorCode(err)
	if f.Structured() {
		_ = f.Error(code, err.Error(), nil)
	}
	exit := ExitCommandError
	switch code {
	case ErrCodeInvalidKey, ErrCodeKeyExists, ErrCodeKeyCollision, ErrCodeLockTimeout, ErrCodeInvalidValue:
		exit = ExitFailure
	}
	return WrapExitError(exit, message, err)
}
