package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docdex/docdex/internal/version"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyVector is returned when a record is written without a vector
	ErrEmptyVector = errors.New("empty vector")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertRecord(ctx context.Context, rec *EmbeddingRecord) error {
	return t.store.upsertRecordWithQuerier(ctx, t.tx, rec)
}

// querier returns the DB querier
func (s *SQLiteStore) querier() querier {
	return s.db
}

const recordColumns = `id, package, version, source_file, source_type, start_byte, end_byte,
       text, text_snippet, content_hash, url, vector, dimension, model, created_at, updated_at`

// upsertRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) upsertRecordWithQuerier(ctx context.Context, q querier, rec *EmbeddingRecord) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}
	rec.Version = version.Normalize(rec.Version)
	if rec.Dimension == 0 {
		rec.Dimension = len(rec.Vector)
	}

	query := `
		INSERT INTO embeddings (package, version, source_file, source_type, start_byte, end_byte,
		                        text, text_snippet, content_hash, url, vector, dimension, model,
		                        created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(package, version, content_hash) DO UPDATE SET
			source_file = excluded.source_file,
			source_type = excluded.source_type,
			start_byte = excluded.start_byte,
			end_byte = excluded.end_byte,
			text = excluded.text,
			text_snippet = excluded.text_snippet,
			url = excluded.url,
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	now := time.Now().UTC()
	err := q.QueryRowContext(ctx, query,
		rec.Package, rec.Version, rec.SourceFile, rec.SourceType, rec.StartByte, rec.EndByte,
		rec.Text, rec.TextSnippet, rec.ContentHash, rec.URL,
		serializeVector(rec.Vector), rec.Dimension, rec.Model, now, now,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec *EmbeddingRecord) error {
	return s.upsertRecordWithQuerier(ctx, s.querier(), rec)
}

// lookupByHashWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) lookupByHashWithQuerier(ctx context.Context, q querier, pkg, ver, hash string) (*EmbeddingRecord, error) {
	// Prefer a record in the requested version, then the most recently
	// written match in any version of the package.
	query := `
		SELECT ` + recordColumns + `
		FROM embeddings
		WHERE package = ? AND content_hash = ?
		ORDER BY (version = ?) DESC, updated_at DESC, id DESC
		LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, pkg, hash, version.Normalize(ver))
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup by hash: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) LookupByHash(ctx context.Context, pkg, ver, hash string) (*EmbeddingRecord, error) {
	return s.lookupByHashWithQuerier(ctx, s.querier(), pkg, ver, hash)
}

// DeleteScope removes all records for a (package, version) pair. An empty
// package never matches anything: deleting with no package would wipe
// unrelated packages sharing the version string.
func (s *SQLiteStore) DeleteScope(ctx context.Context, pkg, ver string) (int64, error) {
	if pkg == "" {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE package = ? AND version = ?",
		pkg, version.Normalize(ver))
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) Exists(ctx context.Context, pkg *string, ver string) (bool, error) {
	count, err := s.CountScope(ctx, pkg, ver)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteStore) CountScope(ctx context.Context, pkg *string, ver string) (int64, error) {
	query := "SELECT COUNT(*) FROM embeddings WHERE version = ?"
	args := []interface{}{version.Normalize(ver)}
	if pkg != nil {
		query += " AND package = ?"
		args = append(args, *pkg)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for record scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*EmbeddingRecord, error) {
	var rec EmbeddingRecord
	var sourceType sql.NullString
	var startByte, endByte sql.NullInt64
	var url sql.NullString
	var blob []byte

	err := row.Scan(
		&rec.ID, &rec.Package, &rec.Version, &rec.SourceFile, &sourceType,
		&startByte, &endByte, &rec.Text, &rec.TextSnippet, &rec.ContentHash,
		&url, &blob, &rec.Dimension, &rec.Model, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourceType.Valid {
		rec.SourceType = &sourceType.String
	}
	if startByte.Valid {
		v := int(startByte.Int64)
		rec.StartByte = &v
	}
	if endByte.Valid {
		v := int(endByte.Int64)
		rec.EndByte = &v
	}
	if url.Valid {
		rec.URL = &url.String
	}
	rec.Vector = deserializeVector(blob)
	return &rec, nil
}
