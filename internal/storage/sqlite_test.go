package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex/internal/version"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(pkg, ver, text string, vector []float32) *EmbeddingRecord {
	return &EmbeddingRecord{
		Package:     pkg,
		Version:     ver,
		SourceFile:  "Module.html",
		Text:        text,
		TextSnippet: text,
		ContentHash: hashOf(text),
		Vector:      vector,
		Dimension:   len(vector),
		Model:       "all-minilm",
	}
}

// hashOf produces a stable fake 64-char hex digest from a short string.
func hashOf(text string) string {
	const hexChars = "0123456789abcdef"
	out := make([]byte, 64)
	for i := range out {
		out[i] = hexChars[(len(text)+i)%16]
	}
	for i, ch := range []byte(text) {
		out[i%64] = hexChars[ch%16]
	}
	return string(out)
}

func TestUpsertRecord_NoDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec1 := testRecord("phoenix", "1.7.0", "Routes requests.", []float32{1, 2, 3})
	require.NoError(t, store.UpsertRecord(ctx, rec1))
	assert.NotZero(t, rec1.ID)

	// Same (package, version, content_hash): row is updated, not duplicated.
	rec2 := testRecord("phoenix", "1.7.0", "Routes requests.", []float32{4, 5, 6})
	rec2.SourceFile = "Phoenix.Router.html"
	require.NoError(t, store.UpsertRecord(ctx, rec2))
	assert.Equal(t, rec1.ID, rec2.ID)

	count, err := store.CountScope(ctx, ptr("phoenix"), "1.7.0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.LookupByHash(ctx, "phoenix", "1.7.0", rec1.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "Phoenix.Router.html", got.SourceFile)
	assert.Equal(t, []float32{4, 5, 6}, got.Vector)
}

func TestUpsertRecord_NormalizesEmptyVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("ash", "", "Resources model entities.", []float32{1})
	require.NoError(t, store.UpsertRecord(ctx, rec))
	assert.Equal(t, version.Latest, rec.Version)

	count, err := store.CountScope(ctx, ptr("ash"), version.Latest)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertRecord_RejectsEmptyVector(t *testing.T) {
	store := newTestStore(t)
	rec := testRecord("ash", "1.0.0", "text", nil)
	assert.ErrorIs(t, store.UpsertRecord(context.Background(), rec), ErrEmptyVector)
}

func TestLookupByHash_PrefersSameVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	text := "Identical doc text across versions."
	old := testRecord("ash", "3.5.9", text, []float32{1, 1})
	require.NoError(t, store.UpsertRecord(ctx, old))
	cur := testRecord("ash", "3.5.10", text, []float32{2, 2})
	require.NoError(t, store.UpsertRecord(ctx, cur))

	got, err := store.LookupByHash(ctx, "ash", "3.5.10", cur.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "3.5.10", got.Version)
	assert.Equal(t, cur.ID, got.ID)

	// A version with no exact match still finds the hash elsewhere.
	got, err = store.LookupByHash(ctx, "ash", "4.0.0", cur.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, cur.ContentHash, got.ContentHash)
}

func TestLookupByHash_ScopedToPackage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("ash", "1.0.0", "shared text", []float32{1})
	require.NoError(t, store.UpsertRecord(ctx, rec))

	// Another package never reuses a different package's vectors.
	_, err := store.LookupByHash(ctx, "phoenix", "1.0.0", rec.ContentHash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "3.5.9", "one", []float32{1})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "3.5.9", "two", []float32{2})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "3.5.10", "three", []float32{3})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("phoenix", "3.5.9", "four", []float32{4})))

	deleted, err := store.DeleteScope(ctx, "ash", "3.5.9")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Other versions and packages are untouched.
	count, err := store.CountScope(ctx, ptr("ash"), "3.5.10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = store.CountScope(ctx, ptr("phoenix"), "3.5.9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteScope_EmptyPackageIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "text", []float32{1})))

	deleted, err := store.DeleteScope(ctx, "", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	count, err := store.CountScope(ctx, nil, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, ptr("ash"), "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "text", []float32{1})))

	ok, err = store.Exists(ctx, ptr("ash"), "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	// nil package matches any package in the version.
	ok, err = store.Exists(ctx, nil, "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, ptr("phoenix"), "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchNearest_Ordering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "far", []float32{10, 0})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "near", []float32{1, 0})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "mid", []float32{5, 0})))

	results, err := store.SearchNearest(ctx, []float32{0, 0}, ScopeFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Record.Text)
	assert.Equal(t, "mid", results[1].Record.Text)
	assert.Equal(t, "far", results[2].Record.Text)
	assert.Less(t, results[0].Distance, results[1].Distance)
	assert.Less(t, results[1].Distance, results[2].Distance)
}

func TestSearchNearest_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "ash one", []float32{1, 0})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "2.0.0", "ash two", []float32{2, 0})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("phoenix", "1.0.0", "phx one", []float32{3, 0})))

	results, err := store.SearchNearest(ctx, []float32{0, 0}, ScopeFilter{Package: ptr("ash")}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "ash", r.Record.Package)
	}

	results, err = store.SearchNearest(ctx, []float32{0, 0},
		ScopeFilter{Package: ptr("ash"), Version: ptr("2.0.0")}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ash two", results[0].Record.Text)
}

func TestSearchNearest_LimitAndDimensionSkip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "a", []float32{1, 0})))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "b", []float32{2, 0})))
	// Wrong dimension: silently excluded from ranking.
	require.NoError(t, store.UpsertRecord(ctx, testRecord("ash", "1.0.0", "c", []float32{1, 2, 3})))

	results, err := store.SearchNearest(ctx, []float32{0, 0}, ScopeFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Record.Text)

	// limit <= 0 returns the whole comparable scope.
	results, err = store.SearchNearest(ctx, []float32{0, 0}, ScopeFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.14159, -0.0001}
	got := DeserializeVector(SerializeVector(vec))
	assert.Equal(t, vec, got)
	assert.Empty(t, DeserializeVector(SerializeVector(nil)))
}

func TestTransaction_RollbackLeavesStoreUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRecord(ctx, testRecord("ash", "1.0.0", "doomed", []float32{1})))
	require.NoError(t, tx.Rollback())

	count, err := store.CountScope(ctx, ptr("ash"), "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestTransaction_CommitPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRecord(ctx, testRecord("ash", "1.0.0", "kept", []float32{1})))
	require.NoError(t, tx.Commit())

	count, err := store.CountScope(ctx, ptr("ash"), "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func ptr(s string) *string {
	return &s
}
