package store

import (
	"context"

	"github.com/roach88/dirstore/internal/record"
	"github.com/roach88/dirstore/internal/value"
)

// Store is an open dirstore.
type Store struct {
	rec *record.Store
}

// Open opens the store rooted at root, creating the directory if needed.
// Opening the same directory twice is safe; both handles see the same
// records.
func Open(root string, opts ...Option) (*Store, error) {
	var o record.Options
	for _, opt := range opts {
		opt(&o)
	}
	rec, err := record.New(root, o)
	if err != nil {
		return nil, err
	}
	return &Store{rec: rec}, nil
}

// Close releases the store. Records stay on disk.
func (s *Store) Close() error {
	return nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.rec.Root()
}

// Records returns the underlying record store for snapshot and watch
// consumers that need raw access.
func (s *Store) Records() *record.Store {
	return s.rec
}

// Corruptions returns how many corrupt records have been downgraded to
// absent since Open.
func (s *Store) Corruptions() int64 {
	return s.rec.Corruptions()
}

// Set stores v under key. Without override, an existing record for key
// fails with a KeyExistsError.
func (s *Store) Set(ctx context.Context, key string, v value.Value, override bool) error {
	return s.rec.Write(ctx, key, v, override)
}

// Lookup returns the value under key and whether it is present.
func (s *Store) Lookup(ctx context.Context, key string) (value.Value, bool, error) {
	return s.rec.Read(ctx, key)
}

// Get returns the value under key, or value.Null{} when absent.
func (s *Store) Get(ctx context.Context, key string) (value.Value, error) {
	v, ok, err := s.rec.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.Null{}, nil
	}
	return v, nil
}

// Exists reports whether a valid record is stored under key. A stored
// null exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.rec.Read(ctx, key)
	return ok, err
}

// Delete removes key and reports whether anything was removed. Deleting an
// absent key returns false without error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	return s.rec.Delete(ctx, key)
}

// Pop removes key and returns the value it held.
func (s *Store) Pop(ctx context.Context, key string) (value.Value, bool, error) {
	return s.rec.Pop(ctx, key)
}

// PopValue is Pop with absence collapsed to value.Null{}.
func (s *Store) PopValue(ctx context.Context, key string) (value.Value, error) {
	v, ok, err := s.rec.Pop(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.Null{}, nil
	}
	return v, nil
}

// Keys returns the original keys of all present records, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.rec.ListKeys(ctx)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	return s.rec.Clear(ctx)
}

// Info returns key's metadata without decoding its value. The checksum is
// not verified, so Info can report a record that Get finds corrupt.
func (s *Store) Info(ctx context.Context, key string) (record.Metadata, bool, error) {
	return s.rec.Info(ctx, key)
}
