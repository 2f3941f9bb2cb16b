// Package record persists one encoded value per key as a pair of files.
//
// For a key whose safe name is s, the store root holds:
//   - s.data.json: the tagged encoding of the value (see internal/codec)
//   - s.meta.json: original key, top-level type, encoding, size and checksum
//   - s.lock: the per-key lock file, created on first use and kept
//
// # Validity
//
// A record is valid only if both files exist, both parse, and the metadata
// agrees with the data (size, sha256 checksum, top-level type). A record
// that fails any check is reported as absent, never as a partial value.
// Each such downgrade is logged at Warn, counted, and passed to the
// OnCorrupt hook so the loss is observable without changing return values.
//
// # Locking
//
// Writers (Write, Delete, Pop) take an exclusive flock on the key's lock
// file. Acquisition polls until Options.LockTimeout and then fails with
// LockTimeoutError. The kernel drops the lock when its holder exits, so a
// crashed writer never leaves the key blocked. Readers do not lock; a reader
// that finds a torn record while a writer holds the lock waits for it and
// validates once more.
//
// Both files are replaced by rename from a temp file in the same directory,
// so a reader never observes a partially written file.
package record
