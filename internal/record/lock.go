package record

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// acquire takes the exclusive lock for key. The lock file stays on disk
// after release: a waiter may already hold it open, so unlinking it would
// let a newcomer lock a different file for the same key.
func (s *Store) acquire(ctx context.Context, key, lockPath string) (func(), error) {
	fl := flock.New(lockPath)

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(waitCtx, s.opts.LockPollInterval)
	switch {
	case ok:
		return func() { s.release(fl) }, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil || errors.Is(err, context.DeadlineExceeded):
		return nil, &LockTimeoutError{Key: key, Waited: s.opts.LockTimeout}
	default:
		return nil, fmt.Errorf("lock %q: %w", key, err)
	}
}

func (s *Store) release(fl *flock.Flock) {
	if err := fl.Unlock(); err != nil {
		s.logger.Warn("failed to release lock", "path", fl.Path(), "error", err)
	}
}

// writerActive reports whether another holder has the exclusive lock on
// lockPath right now.
func (s *Store) writerActive(lockPath string) bool {
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	fl := flock.New(lockPath)
	ok, err := fl.TryRLock()
	if err != nil {
		return false
	}
	if ok {
		s.release(fl)
		return false
	}
	return true
}

// waitForWriter blocks until the exclusive holder of lockPath releases it,
// the lock timeout passes, or ctx is done. Returns true if the writer
// finished.
func (s *Store) waitForWriter(ctx context.Context, lockPath string) bool {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	fl := flock.New(lockPath)
	ok, err := fl.TryRLockContext(waitCtx, s.opts.LockPollInterval)
	if err != nil || !ok {
		return false
	}
	s.release(fl)
	return true
}
