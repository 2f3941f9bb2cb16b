// Package snapshot exports a dirstore to a single SQLite file and imports
// it back.
//
// A snapshot row carries the record's data file bytes unchanged, together
// with the metadata needed to validate them. Import re-decodes every row,
// so a snapshot edited by hand cannot smuggle in a malformed record.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dirstore/internal/codec"
	"github.com/roach88/dirstore/internal/record"
	"github.com/roach88/dirstore/internal/value"
)

// Format is written into snapshot_info on every export.
const Format = 1

// Options configures a Snapshot. Zero fields take defaults.
type Options struct {
	Logger *slog.Logger
	// Workers bounds the concurrent record reads during export.
	// Defaults to GOMAXPROCS.
	Workers int
	Now     func() time.Time
}

// Snapshot is an open snapshot file.
type Snapshot struct {
	db     *sql.DB
	path   string
	opts   Options
	logger *slog.Logger
}

// Entry describes one record stored in a snapshot.
type Entry struct {
	Key       string
	Type      value.Kind
	SizeBytes int64
}

// Info is the snapshot_info row written by the last export.
type Info struct {
	CreatedAt   time.Time
	RecordCount int
	Format      int
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int
	// Skipped counts rows whose key already existed when importing
	// without override.
	Skipped int
	// Invalid counts rows that failed validation and were not written.
	Invalid int
}

// Open creates or opens the snapshot at path.
func Open(path string, opts Options) (*Snapshot, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		db:     db,
		path:   path,
		opts:   opts,
		logger: opts.Logger.With("snapshot", path),
	}, nil
}

// Close closes the database connection.
func (s *Snapshot) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type exportRow struct {
	key string
	raw record.RawRecord
}

// Export replaces the snapshot contents with every valid record in recs.
// Records are read in parallel; rows are written in one transaction.
// Returns the number of records exported.
func (s *Snapshot) Export(ctx context.Context, recs *record.Store) (int, error) {
	keys, err := recs.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}

	rows := make([]*exportRow, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, key := range keys {
		g.Go(func() error {
			raw, ok, err := recs.Raw(gctx, key)
			if err != nil {
				return fmt.Errorf("read %q: %w", key, err)
			}
			if ok {
				rows[i] = &exportRow{key: key, raw: raw}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (key, type, encoding, size_bytes, checksum, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, row := range rows {
		// Vanished between listing and reading.
		if row == nil {
			continue
		}
		m := row.raw.Meta
		if _, err := stmt.ExecContext(ctx, row.key, string(m.Type), m.Encoding, m.SizeBytes, m.Checksum, row.raw.Data); err != nil {
			return 0, fmt.Errorf("insert %q: %w", row.key, err)
		}
		count++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_info (id, created_at, record_count, format)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			record_count = excluded.record_count,
			format = excluded.format
	`, s.opts.Now().UTC().Format(time.RFC3339Nano), count, Format)
	if err != nil {
		return 0, fmt.Errorf("write snapshot info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("snapshot exported", "records", count)
	return count, nil
}

// Import writes every snapshot row into recs. Without override, rows whose
// key already exists are skipped. Rows that fail validation are logged and
// counted, never written.
func (s *Snapshot) Import(ctx context.Context, recs *record.Store, override bool) (ImportResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, type, encoding, size_bytes, checksum, data
		FROM records
		ORDER BY key ASC
	`)
	if err != nil {
		return ImportResult{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var res ImportResult
	for rows.Next() {
		var (
			key, kind, encoding, sum string
			size                     int64
			data                     []byte
		)
		if err := rows.Scan(&key, &kind, &encoding, &size, &sum, &data); err != nil {
			return res, fmt.Errorf("scan record: %w", err)
		}

		v, err := decodeRow(kind, encoding, size, sum, data)
		if err != nil {
			s.logger.Warn("invalid snapshot row", "key", key, "error", err)
			res.Invalid++
			continue
		}

		err = recs.Write(ctx, key, v, override)
		switch {
		case err == nil:
			res.Imported++
		case record.IsKeyExists(err) || record.IsKeyCollision(err):
			s.logger.Debug("skipping existing key", "key", key)
			res.Skipped++
		default:
			return res, fmt.Errorf("import %q: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("iterate records: %w", err)
	}

	s.logger.Info("snapshot imported", "imported", res.Imported, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, nil
}

func decodeRow(kind, encoding string, size int64, sum string, data []byte) (value.Value, error) {
	k, err := value.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if encoding != codec.Encoding {
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: row says %d bytes, data has %d", size, len(data))
	}
	if record.Checksum(data) != sum {
		return nil, errors.New("checksum mismatch")
	}
	return codec.Decode(data, k)
}

// Entries lists the snapshot's records in key order. A non-empty kind
// restricts the listing to records of that kind.
func (s *Snapshot) Entries(ctx context.Context, kind value.Kind) ([]Entry, error) {
	query := `SELECT key, type, size_bytes FROM records ORDER BY key ASC`
	var args []any
	if kind != "" {
		query = `SELECT key, type, size_bytes FROM records WHERE type = ? ORDER BY key ASC`
		args = append(args, string(kind))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kindText string
		if err := rows.Scan(&e.Key, &kindText, &e.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = value.Kind(kindText)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Info returns the snapshot_info row. The boolean is false for a snapshot
// that was never exported to.
func (s *Snapshot) Info(ctx context.Context) (Info, bool, error) {
	var (
		info    Info
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, record_count, format FROM snapshot_info WHERE id = 1
	`).Scan(&created, &info.RecordCount, &info.Format)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, fmt.Errorf("query snapshot info: %w", err)
	}
	info.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Info{}, false, fmt.Errorf("parse created_at: %w", err)
	}
	return info, true, nil
}
