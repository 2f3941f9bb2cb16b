// Package store is the public face of a dirstore: a directory of typed
// values addressed by string keys.
//
// Every key maps to two files, a tagged-JSON data file and a metadata file
// recording the original key, the value kind, the payload size and a sha256
// checksum. A record counts as present only when both files exist and agree.
// Anything else reads as absent; corruption is never surfaced as an error.
//
// # Presence
//
// Lookup and Pop report presence explicitly, so a stored null is
// distinguishable from a missing key. Get and PopValue collapse both cases
// to value.Null{} for callers that do not care.
//
// # Concurrency
//
// Writers to the same key are serialized by a lock file next to the record.
// Readers take no lock; a reader that finds a record mid-replacement waits
// for the writer and looks once more.
package store
