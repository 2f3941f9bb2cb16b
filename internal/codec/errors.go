package codec

import (
	"errors"
	"fmt"

	"github.com/roach88/dirstore/internal/value"
)

// CodecError reports a value that cannot be encoded or a payload that does
// not match the shape its discriminator promises.
type CodecError struct {
	// Path locates the offending node, e.g. "$", "$[2]", `$["a"][0]`.
	Path string

	// Kind is the discriminator being processed, if known.
	Kind value.Kind

	// Msg is a human-readable description.
	Msg string

	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Kind != "" {
		return fmt.Sprintf("codec: %s (%s): %s", e.Path, e.Kind, msg)
	}
	return fmt.Sprintf("codec: %s: %s", e.Path, msg)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// IsCodecError returns true if err is or wraps a CodecError.
func IsCodecError(err error) bool {
	var ce *CodecError
	return errors.As(err, &ce)
}

func codecErr(path string, kind value.Kind, msg string, err error) *CodecError {
	return &CodecError{Path: path, Kind: kind, Msg: msg, Err: err}
}
