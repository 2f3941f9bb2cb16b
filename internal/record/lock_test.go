package record

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirstore/internal/value"
)

func lockPathFor(t *testing.T, s *Store, key string) string {
	t.Helper()
	p, err := s.pathsFor(key)
	require.NoError(t, err)
	return p.lock
}

// holdLock takes the key's lock the way another process would and returns
// the holder.
func holdLock(t *testing.T, s *Store, key string) *flock.Flock {
	t.Helper()
	fl := flock.New(lockPathFor(t, s, key))
	ok, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = fl.Unlock() })
	return fl
}

func TestLock_TimeoutWhenHeld(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{
		LockTimeout:      50 * time.Millisecond,
		LockPollInterval: 5 * time.Millisecond,
	})

	holdLock(t, s, "busy")

	err := s.Write(ctx, "busy", value.Int(1), false)
	require.Error(t, err)
	assert.True(t, IsLockTimeout(err))

	var lte *LockTimeoutError
	require.ErrorAs(t, err, &lte)
	assert.Equal(t, "busy", lte.Key)
	assert.True(t, lte.Temporary())

	_, err = s.Delete(ctx, "busy")
	assert.True(t, IsLockTimeout(err))

	_, _, err = s.Pop(ctx, "busy")
	assert.True(t, IsLockTimeout(err))
}

func TestLock_ContextCancelled(t *testing.T) {
	s := createTestStore(t, Options{LockTimeout: time.Minute})

	holdLock(t, s, "busy")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Write(ctx, "busy", value.Int(1), false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsLockTimeout(err))
}

func TestLock_LeftoverFileDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 50 * time.Millisecond})

	// A writer that crashed leaves its lock file but no lock.
	lock := lockPathFor(t, s, "k")
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	require.NoError(t, s.Write(ctx, "k", value.String("after crash"), false))
	got, ok, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.String("after crash"), got))
}

func TestLock_WaiterProceedsAfterRelease(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 5 * time.Second, LockPollInterval: time.Millisecond})

	holder := holdLock(t, s, "k")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = holder.Unlock()
	}()

	require.NoError(t, s.Write(ctx, "k", value.Int(1), false))
}

func TestLock_HandoverKeepsMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 10 * time.Second, LockPollInterval: time.Millisecond})
	lock := lockPathFor(t, s, "k")

	// A lock file from a crashed writer, then many waiters racing for it.
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	const waiters = 16
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.acquire(ctx, "k", lock)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "two holders were inside the lock at once")
	assert.FileExists(t, lock)
}

func TestLock_ConcurrentWritersSerialize(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 10 * time.Second, LockPollInterval: time.Millisecond})

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Write(ctx, "shared_key", value.Int(int64(i)), true)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, ok, err := s.Read(ctx, "shared_key")
	require.NoError(t, err)
	require.True(t, ok)
	n, isInt := got.(value.Int)
	require.True(t, isInt)
	assert.GreaterOrEqual(t, int64(n), int64(0))
	assert.Less(t, int64(n), int64(writers))
	assert.Zero(t, s.Corruptions())
}

func TestLock_ExactlyOneCreateWins(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 10 * time.Second, LockPollInterval: time.Millisecond})

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Write(ctx, "once", value.Int(int64(i)), false)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, IsKeyExists(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestRead_WaitsForWriterOnTornRecord(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{LockTimeout: 5 * time.Second, LockPollInterval: time.Millisecond})

	require.NoError(t, s.Write(ctx, "k", value.String("complete"), false))
	dataPath, _, err := s.Paths("k")
	require.NoError(t, err)
	good, err := os.ReadFile(dataPath)
	require.NoError(t, err)

	// Simulate a writer midway through replacing the record.
	writer := holdLock(t, s, "k")
	require.NoError(t, os.WriteFile(dataPath, []byte("torn"), 0o644))

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(dataPath, good, 0o644)
		_ = writer.Unlock()
	}()

	got, ok, err := s.Read(ctx, "k")
	<-done
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.String("complete"), got))
	assert.Zero(t, s.Corruptions())
}

func TestRead_CorruptWithoutWriterDoesNotCreateLock(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{})

	dataPath, metaPath, err := s.Paths("k")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dataPath, []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(metaPath, []byte("junk"), 0o644))

	_, ok, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Corruptions())
	assert.NoFileExists(t, lockPathFor(t, s, "k"))
}

func TestLock_FileKeptAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{})

	require.NoError(t, s.Write(ctx, "k", value.Int(1), false))
	_, err := s.Delete(ctx, "k")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(s.Root(), "*"+LockSuffix))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
