package store

import (
	"log/slog"
	"time"

	"github.com/roach88/dirstore/internal/record"
)

// Option configures a Store at Open.
type Option func(*record.Options)

// WithLogger sets the logger for store events. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(o *record.Options) { o.Logger = l }
}

// WithLockTimeout bounds how long a writer waits for a key's lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *record.Options) { o.LockTimeout = d }
}

// WithLockPollInterval sets how often a waiting writer retries the lock.
func WithLockPollInterval(d time.Duration) Option {
	return func(o *record.Options) { o.LockPollInterval = d }
}

// WithCorruptionHook registers fn to be called for every corrupt record a
// read downgrades to absent.
func WithCorruptionHook(fn func(record.CorruptionEvent)) Option {
	return func(o *record.Options) { o.OnCorrupt = fn }
}
