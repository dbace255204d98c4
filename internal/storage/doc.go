// Package storage persists embedding records in SQLite.
//
// Records are keyed by (package, version, content_hash): writing the same
// key again updates the row in place instead of creating a duplicate, which
// is what makes re-indexing idempotent. Vectors are stored as little-endian
// float32 blobs and compared by Euclidean distance with a linear scan.
//
// Two interchangeable drivers are selected at build time: modernc.org/sqlite
// (pure Go, the default) and mattn/go-sqlite3 (CGO, behind the sqlite_cgo
// tag). Both run the database in WAL mode on a single connection.
package storage
