package storage

import (
	"context"
	"time"
)

// EmbeddingRecord is the persisted unit of the embedding cache. Within one
// (package, version) scope at most one record exists per content hash; a
// later chunk sharing that identity updates the existing row's metadata in
// place. Across versions the same hash authorizes vector reuse but still
// produces a separate record, because version is a first-class retrieval and
// deletion boundary.
type EmbeddingRecord struct {
	ID          int64
	Package     string
	Version     string // never empty in storage; "latest" is the sentinel
	SourceFile  string
	SourceType  *string
	StartByte   *int
	EndByte     *int
	Text        string
	TextSnippet string
	ContentHash string // sha-256 hex of Text, the sole reuse key
	URL         *string
	Vector      []float32
	Dimension   int
	Model       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScopeFilter narrows a nearest-neighbor query. Nil fields are unrestricted.
type ScopeFilter struct {
	Package *string
	Version *string
}

// NearestResult is one nearest-neighbor hit. Distance is Euclidean (L2),
// ascending: lower is closer.
type NearestResult struct {
	Record   *EmbeddingRecord
	Distance float64
}

// Store persists and queries embedding records.
type Store interface {
	// UpsertRecord inserts rec or, when a record with the same
	// (package, version, content_hash) exists, updates its mutable fields
	// and vector in place. rec.ID and timestamps are populated.
	UpsertRecord(ctx context.Context, rec *EmbeddingRecord) error

	// LookupByHash finds a record of pkg with the given content hash for
	// vector reuse, preferring a match in the same version, else the most
	// recently updated match in any version. Returns ErrNotFound when the
	// hash has never been embedded for pkg.
	LookupByHash(ctx context.Context, pkg, version, hash string) (*EmbeddingRecord, error)

	// SearchNearest returns up to limit records in the filtered scope
	// ordered by ascending L2 distance from vector. A limit <= 0 returns
	// every record in scope.
	SearchNearest(ctx context.Context, vector []float32, filter ScopeFilter, limit int) ([]NearestResult, error)

	// DeleteScope removes every record matching both pkg and version and
	// reports how many were removed. An empty pkg is a safety no-op
	// returning 0.
	DeleteScope(ctx context.Context, pkg, version string) (int64, error)

	// Exists reports whether any record matches the scope. A nil pkg means
	// any package.
	Exists(ctx context.Context, pkg *string, version string) (bool, error)

	// CountScope counts records in the scope. A nil pkg means any package.
	CountScope(ctx context.Context, pkg *string, version string) (int64, error)

	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a storage transaction. All writes of one generate run happen inside
// a single transaction so readers never observe a partially persisted batch.
type Tx interface {
	Commit() error
	Rollback() error

	UpsertRecord(ctx context.Context, rec *EmbeddingRecord) error
}
