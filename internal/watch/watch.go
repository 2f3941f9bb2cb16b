// Package watch turns filesystem activity in a store directory into a
// stream of record-level change events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/dirstore/internal/record"
	"github.com/roach88/dirstore/internal/safename"
	"github.com/roach88/dirstore/internal/value"
)

// DefaultDebounce is the quiet period before pending changes are examined.
const DefaultDebounce = 50 * time.Millisecond

// Op is the kind of change observed.
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Event is one observed change to a record.
type Event struct {
	Op       Op         `json:"op" yaml:"op"`
	Key      string     `json:"key" yaml:"key"`
	SafeName string     `json:"safe_name" yaml:"safe_name"`
	Type     value.Kind `json:"type,omitempty" yaml:"type,omitempty"`
	At       time.Time  `json:"at" yaml:"at"`
}

// Options configures a Watcher. Zero fields take defaults.
type Options struct {
	Logger   *slog.Logger
	Debounce time.Duration
	Now      func() time.Time
}

// Watcher reports changes to the records of one store.
type Watcher struct {
	recs   *record.Store
	opts   Options
	logger *slog.Logger

	// known maps safe name to the last state reported for it.
	known map[string]record.Metadata
}

// New creates a watcher for recs.
func New(recs *record.Store, opts Options) *Watcher {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Watcher{
		recs:   recs,
		opts:   opts,
		logger: opts.Logger,
		known:  make(map[string]record.Metadata),
	}
}

// Run watches until ctx is done, calling handle for every change in the
// order it is observed. Records present when Run starts are not reported.
// Returns nil when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.recs.Root()); err != nil {
		return fmt.Errorf("watch %s: %w", w.recs.Root(), err)
	}
	if err := w.seed(ctx); err != nil {
		return err
	}
	w.logger.Debug("watching store", "root", w.recs.Root())

	var debounceTimer *time.Timer
	pending := make(map[string]bool)
	flush := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			safe, isRecord := record.SafeNameOf(filepath.Base(event.Name))
			if !isRecord {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			pending[safe] = true

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.opts.Debounce, func() {
				select {
				case flush <- struct{}{}:
				default:
				}
			})

		case <-flush:
			names := slices.Sorted(maps.Keys(pending))
			clear(pending)
			for _, safe := range names {
				if err := w.examine(ctx, safe, handle); err != nil {
					w.logger.Error("examine record", "safe_name", safe, "error", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// seed records the current state so existing records are not reported.
func (w *Watcher) seed(ctx context.Context) error {
	keys, err := w.recs.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		safe, err := safename.Encode(key)
		if err != nil {
			continue
		}
		meta, ok, err := w.recs.InfoBySafeName(ctx, safe)
		if err != nil {
			return err
		}
		if ok {
			w.known[safe] = meta
		}
	}
	return nil
}

// examine compares the record under safe with what was last reported and
// emits the difference.
func (w *Watcher) examine(ctx context.Context, safe string, handle func(Event)) error {
	meta, ok, err := w.recs.InfoBySafeName(ctx, safe)
	if err != nil {
		return err
	}
	prev, known := w.known[safe]

	switch {
	case ok && (!known || prev.Checksum != meta.Checksum || prev.OriginalKey != meta.OriginalKey):
		if known && prev.OriginalKey != meta.OriginalKey {
			handle(Event{Op: OpDelete, Key: prev.OriginalKey, SafeName: safe, At: w.opts.Now()})
		}
		w.known[safe] = meta
		handle(Event{Op: OpSet, Key: meta.OriginalKey, SafeName: safe, Type: meta.Type, At: w.opts.Now()})
	case !ok && known:
		delete(w.known, safe)
		handle(Event{Op: OpDelete, Key: prev.OriginalKey, SafeName: safe, At: w.opts.Now()})
	}
	return nil
}
