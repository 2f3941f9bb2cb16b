package record

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dirstore/internal/codec"
	"github.com/roach88/dirstore/internal/safename"
	"github.com/roach88/dirstore/internal/value"
)

// File name suffixes. Safe names never contain '.', so a suffix cannot be
// mistaken for part of a name.
const (
	DataSuffix = ".data.json"
	MetaSuffix = ".meta.json"
	LockSuffix = ".lock"
	tmpPrefix  = ".tmp-"
)

// Defaults for Options fields left zero.
const (
	DefaultLockTimeout      = 5 * time.Second
	DefaultLockPollInterval = 10 * time.Millisecond
)

// CorruptionEvent describes a record that was downgraded to absent.
type CorruptionEvent struct {
	Key      string
	SafeName string
	Reason   string
}

// Options configures a Store. Zero fields take the package defaults.
type Options struct {
	LockTimeout      time.Duration
	LockPollInterval time.Duration

	Logger    *slog.Logger
	OnCorrupt func(CorruptionEvent)
}

func (o Options) withDefaults() Options {
	if o.LockTimeout == 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.LockPollInterval <= 0 {
		o.LockPollInterval = DefaultLockPollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Store is a directory of records.
type Store struct {
	root        string
	opts        Options
	logger      *slog.Logger
	corruptions atomic.Int64
}

// RawRecord is a validated record in its persisted form.
type RawRecord struct {
	Meta Metadata
	Data []byte
}

// New opens the store rooted at root, creating the directory if needed.
func New(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	opts = opts.withDefaults()
	return &Store{
		root:   root,
		opts:   opts,
		logger: opts.Logger.With("root", root),
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Corruptions returns how many reads have downgraded a corrupt record to
// absent since the store was opened.
func (s *Store) Corruptions() int64 {
	return s.corruptions.Load()
}

// paths holds the file locations for one safe name.
type paths struct {
	safe string
	data string
	meta string
	lock string
}

func (s *Store) pathsForSafe(safe string) paths {
	return paths{
		safe: safe,
		data: filepath.Join(s.root, safe+DataSuffix),
		meta: filepath.Join(s.root, safe+MetaSuffix),
		lock: filepath.Join(s.root, safe+LockSuffix),
	}
}

func (s *Store) pathsFor(key string) (paths, error) {
	safe, err := safename.Encode(key)
	if err != nil {
		return paths{}, err
	}
	return s.pathsForSafe(safe), nil
}

// Paths returns the data and metadata file locations for key.
func (s *Store) Paths(key string) (dataPath, metaPath string, err error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return "", "", err
	}
	return p.data, p.meta, nil
}

// status classifies what was found on disk for a safe name.
type status int

const (
	statusAbsent status = iota
	statusValid
	statusCorrupt
	// statusForeign is a valid record that belongs to a different key with
	// the same safe name.
	statusForeign
)

// loaded is the outcome of inspecting one record.
type loaded struct {
	status status
	meta   Metadata
	data   []byte
	value  value.Value
	reason string
}

type loadDepth int

const (
	// loadMeta parses metadata and checks the data file's size.
	loadMeta loadDepth = iota
	// loadVerified also reads the data and checks its checksum.
	loadVerified
	// loadFull also decodes the value.
	loadFull
)

func corrupt(format string, args ...any) loaded {
	return loaded{status: statusCorrupt, reason: fmt.Sprintf(format, args...)}
}

// load inspects the record at p. key may be empty to accept any owner.
// Only unexpected I/O failures are returned as errors.
func (s *Store) load(p paths, key string, depth loadDepth) (loaded, error) {
	rawMeta, metaErr := os.ReadFile(p.meta)
	dataInfo, dataErr := os.Stat(p.data)

	metaMissing := errors.Is(metaErr, fs.ErrNotExist)
	dataMissing := errors.Is(dataErr, fs.ErrNotExist)
	switch {
	case metaMissing && dataMissing:
		return loaded{status: statusAbsent}, nil
	case metaErr != nil && !metaMissing:
		return loaded{}, fmt.Errorf("read metadata %s: %w", p.meta, metaErr)
	case dataErr != nil && !dataMissing:
		return loaded{}, fmt.Errorf("stat data %s: %w", p.data, dataErr)
	case metaMissing:
		return corrupt("metadata file missing"), nil
	case dataMissing:
		return corrupt("data file missing"), nil
	}

	meta, err := parseMetadata(rawMeta)
	if err != nil {
		return corrupt("%v", err), nil
	}
	if key != "" && !safename.SameKey(meta.OriginalKey, key) {
		return loaded{status: statusForeign, meta: meta}, nil
	}
	if dataInfo.Size() != meta.SizeBytes {
		return corrupt("size mismatch: metadata says %d bytes, data has %d", meta.SizeBytes, dataInfo.Size()), nil
	}
	if depth == loadMeta {
		return loaded{status: statusValid, meta: meta}, nil
	}

	data, err := os.ReadFile(p.data)
	if errors.Is(err, fs.ErrNotExist) {
		return corrupt("data file missing"), nil
	}
	if err != nil {
		return loaded{}, fmt.Errorf("read data %s: %w", p.data, err)
	}
	if err := meta.verify(data); err != nil {
		return corrupt("%v", err), nil
	}
	if depth == loadVerified {
		return loaded{status: statusValid, meta: meta, data: data}, nil
	}

	v, err := codec.Decode(data, meta.Type)
	if err != nil {
		return corrupt("%v", err), nil
	}
	return loaded{status: statusValid, meta: meta, data: data, value: v}, nil
}

// loadForRead is load plus the torn-write retry: a corrupt record seen while
// a writer holds the lock is re-inspected once the lock is released.
func (s *Store) loadForRead(ctx context.Context, p paths, key string, depth loadDepth) (loaded, error) {
	rec, err := s.load(p, key, depth)
	if err != nil || rec.status != statusCorrupt || !s.writerActive(p.lock) {
		return rec, err
	}
	s.logger.Debug("record inconsistent while locked, waiting for writer", "key", key)
	if !s.waitForWriter(ctx, p.lock) {
		return rec, nil
	}
	return s.load(p, key, depth)
}

func (s *Store) reportCorrupt(key, safe, reason string) {
	s.corruptions.Add(1)
	s.logger.Warn("corrupt record", "key", key, "safe_name", safe, "reason", reason)
	if s.opts.OnCorrupt != nil {
		s.opts.OnCorrupt(CorruptionEvent{Key: key, SafeName: safe, Reason: reason})
	}
}

// Write stores v under key.
//
// Without override, an existing valid record for key yields KeyExistsError
// and a valid record for a colliding key yields KeyCollisionError. Corrupt
// records never block a write.
func (s *Store) Write(ctx context.Context, key string, v value.Value, override bool) error {
	p, err := s.pathsFor(key)
	if err != nil {
		return err
	}
	data, kind, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	release, err := s.acquire(ctx, key, p.lock)
	if err != nil {
		return err
	}
	defer release()

	existing, err := s.load(p, key, loadFull)
	if err != nil {
		return err
	}
	switch existing.status {
	case statusValid:
		if !override {
			return &KeyExistsError{Key: key}
		}
	case statusForeign:
		if !override {
			return &KeyCollisionError{Key: key, Existing: existing.meta.OriginalKey, SafeName: p.safe}
		}
		s.logger.Warn("overwriting colliding key", "key", key, "previous_key", existing.meta.OriginalKey, "safe_name", p.safe)
	}

	meta := newMetadata(key, kind, data)
	rawMeta, err := marshalMetadata(meta)
	if err != nil {
		return err
	}

	if err := s.writeAtomic(p.data, data); err != nil {
		return fmt.Errorf("write data for %q: %w", key, err)
	}
	if err := s.writeAtomic(p.meta, rawMeta); err != nil {
		return fmt.Errorf("write metadata for %q: %w", key, err)
	}

	s.logger.Debug("record written", "key", key, "type", kind, "size_bytes", meta.SizeBytes)
	return nil
}

// Read returns the value stored under key. The boolean is false when the
// record is absent or corrupt.
func (s *Store) Read(ctx context.Context, key string) (value.Value, bool, error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return nil, false, err
	}
	rec, err := s.loadForRead(ctx, p, key, loadFull)
	if err != nil {
		return nil, false, err
	}
	switch rec.status {
	case statusValid:
		return rec.value, true, nil
	case statusCorrupt:
		s.reportCorrupt(key, p.safe, rec.reason)
	}
	return nil, false, nil
}

// Info returns the metadata for key without decoding the data file. Only
// the data file's size is checked against the metadata, so a same-length
// change to the data file still reports the record as present; Read
// verifies the checksum.
func (s *Store) Info(ctx context.Context, key string) (Metadata, bool, error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return Metadata{}, false, err
	}
	rec, err := s.loadForRead(ctx, p, key, loadMeta)
	if err != nil {
		return Metadata{}, false, err
	}
	switch rec.status {
	case statusValid:
		return rec.meta, true, nil
	case statusCorrupt:
		s.reportCorrupt(key, p.safe, rec.reason)
	}
	return Metadata{}, false, nil
}

// InfoBySafeName returns the metadata of the record stored under safe,
// whichever key owns it. Corrupt records read as absent but are not
// reported.
func (s *Store) InfoBySafeName(ctx context.Context, safe string) (Metadata, bool, error) {
	rec, err := s.loadForRead(ctx, s.pathsForSafe(safe), "", loadMeta)
	if err != nil || rec.status != statusValid {
		return Metadata{}, false, err
	}
	return rec.meta, true, nil
}

// Raw returns the validated persisted form of key's record.
func (s *Store) Raw(ctx context.Context, key string) (RawRecord, bool, error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return RawRecord{}, false, err
	}
	rec, err := s.loadForRead(ctx, p, key, loadVerified)
	if err != nil {
		return RawRecord{}, false, err
	}
	switch rec.status {
	case statusValid:
		return RawRecord{Meta: rec.meta, Data: rec.data}, true, nil
	case statusCorrupt:
		s.reportCorrupt(key, p.safe, rec.reason)
	}
	return RawRecord{}, false, nil
}

// Delete removes key's record. Leftovers of a corrupt record are removed
// too. A record belonging to a colliding key is left alone. Returns whether
// any file was removed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return false, err
	}
	release, err := s.acquire(ctx, key, p.lock)
	if err != nil {
		return false, err
	}
	defer release()

	rec, err := s.load(p, key, loadMeta)
	if err != nil {
		return false, err
	}
	if rec.status == statusAbsent || rec.status == statusForeign {
		return false, nil
	}
	removed, err := s.removeFiles(p)
	if removed {
		s.logger.Debug("record deleted", "key", key)
	}
	return removed, err
}

// Pop returns key's value and removes the record under a single lock hold.
func (s *Store) Pop(ctx context.Context, key string) (value.Value, bool, error) {
	p, err := s.pathsFor(key)
	if err != nil {
		return nil, false, err
	}
	release, err := s.acquire(ctx, key, p.lock)
	if err != nil {
		return nil, false, err
	}
	defer release()

	rec, err := s.load(p, key, loadFull)
	if err != nil {
		return nil, false, err
	}
	switch rec.status {
	case statusAbsent, statusForeign:
		return nil, false, nil
	case statusCorrupt:
		s.reportCorrupt(key, p.safe, rec.reason)
		_, err := s.removeFiles(p)
		return nil, false, err
	}

	if _, err := s.removeFiles(p); err != nil {
		return nil, false, err
	}
	s.logger.Debug("record popped", "key", key)
	return rec.value, true, nil
}

// ListKeys returns the original keys of all valid records, sorted.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	names, err := s.safeNames()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(names))
	for _, safe := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := s.pathsForSafe(safe)
		rec, err := s.load(p, "", loadFull)
		if err != nil {
			return nil, err
		}
		switch rec.status {
		case statusValid:
			keys = append(keys, rec.meta.OriginalKey)
		case statusCorrupt:
			s.reportCorrupt("", safe, rec.reason)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// safeNames lists every safe name with a data or metadata file.
func (s *Store) safeNames() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		safe, ok := SafeNameOf(e.Name())
		if !ok || seen[safe] {
			continue
		}
		seen[safe] = true
		names = append(names, safe)
	}
	slices.Sort(names)
	return names, nil
}

// SafeNameOf returns the safe name a data or metadata file belongs to.
// The boolean is false for any other file name.
func SafeNameOf(fileName string) (string, bool) {
	if strings.HasPrefix(fileName, tmpPrefix) {
		return "", false
	}
	var safe string
	switch {
	case strings.HasSuffix(fileName, MetaSuffix):
		safe = strings.TrimSuffix(fileName, MetaSuffix)
	case strings.HasSuffix(fileName, DataSuffix):
		safe = strings.TrimSuffix(fileName, DataSuffix)
	}
	return safe, safe != ""
}

// Clear removes every record file and orphaned temp file under the root.
// Lock files are left for their holders.
func (s *Store) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read store root: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, DataSuffix) && !strings.HasSuffix(name, MetaSuffix) && !strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	s.logger.Info("store cleared", "files_removed", removed)
	return nil
}

func (s *Store) removeFiles(p paths) (bool, error) {
	removed := false
	// Metadata first: without it the record is already invisible.
	for _, path := range []string{p.meta, p.data} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return removed, nil
}

// writeAtomic replaces path with data via a uniquely named temp file in the
// same directory and a rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(s.root, tmpPrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
