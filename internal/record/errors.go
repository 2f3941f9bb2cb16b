package record

import (
	"errors"
	"fmt"
	"time"
)

// KeyExistsError is returned by Write without override when a valid record
// for the key is already stored.
type KeyExistsError struct {
	Key string
}

func (e *KeyExistsError) Error() string {
	return fmt.Sprintf("key %q already exists (use override to replace it)", e.Key)
}

// KeyCollisionError is returned by Write without override when the key's
// safe name is occupied by a valid record for a different key.
type KeyCollisionError struct {
	Key      string
	Existing string
	SafeName string
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("key %q collides with stored key %q (safe name %q)", e.Key, e.Existing, e.SafeName)
}

// LockTimeoutError is returned when the per-key lock could not be acquired
// in time. It is transient: retrying later may succeed.
type LockTimeoutError struct {
	Key    string
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock on key %q", e.Waited, e.Key)
}

// Temporary marks the error as retryable.
func (e *LockTimeoutError) Temporary() bool {
	return true
}

// IsKeyExists returns true if err is or wraps a KeyExistsError.
func IsKeyExists(err error) bool {
	var ke *KeyExistsError
	return errors.As(err, &ke)
}

// IsKeyCollision returns true if err is or wraps a KeyCollisionError.
func IsKeyCollision(err error) bool {
	var kc *KeyCollisionError
	return errors.As(err, &kc)
}

// IsLockTimeout returns true if err is or wraps a LockTimeoutError.
func IsLockTimeout(err error) bool {
	var lt *LockTimeoutError
	return errors.As(err, &lt)
}
