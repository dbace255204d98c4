package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docdex/docdex/internal/chunk"
	"github.com/docdex/docdex/internal/embedder"
	"github.com/docdex/docdex/internal/progress"
	"github.com/docdex/docdex/internal/storage"
	"github.com/docdex/docdex/internal/version"
)

// Pipeline tuning defaults.
const (
	DefaultBatchSize    = 10
	DefaultWorkers      = 4
	DefaultChunkTimeout = 30 * time.Second
)

// ErrDimensionMismatch is returned when a reused or generated vector does not
// match the embedder's configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Options tunes a Generate run. The zero value is usable; zero fields fall
// back to the package defaults.
type Options struct {
	BatchSize    int
	Workers      int
	ChunkTimeout time.Duration
	Progress     progress.Func
}

func (o *Options) withDefaults() Options {
	opts := Options{
		BatchSize:    DefaultBatchSize,
		Workers:      DefaultWorkers,
		ChunkTimeout: DefaultChunkTimeout,
	}
	if o == nil {
		return opts
	}
	if o.BatchSize > 0 {
		opts.BatchSize = o.BatchSize
	}
	if o.Workers > 0 {
		opts.Workers = o.Workers
	}
	if o.ChunkTimeout > 0 {
		opts.ChunkTimeout = o.ChunkTimeout
	}
	opts.Progress = o.Progress
	return opts
}

// Stats summarizes one Generate run. Total counts every chunk that ended up
// persisted, whether its vector was freshly generated or reused.
type Stats struct {
	Total  int
	New    int
	Reused int
}

// Indexer embeds documentation chunks and persists them incrementally.
type Indexer struct {
	store    storage.Store
	embedder embedder.Embedder
	logger   *zap.Logger
}

// New creates an indexer. A nil logger disables logging.
func New(store storage.Store, emb embedder.Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{store: store, embedder: emb, logger: logger}
}

// candidate is a fully resolved record awaiting the final transaction.
type candidate struct {
	rec   storage.EmbeddingRecord
	fresh bool
}

// Generate embeds chunks and persists the results in a single transaction.
//
// Chunks are processed in batches by a bounded worker pool. Failures local to
// one chunk (malformed input, provider error, missing vector) are logged and
// skipped; the run keeps going. Storage errors and dimension mismatches abort
// the whole run with nothing persisted.
//
// A chunk whose content hash is already stored for its exact scope is
// re-persisted as a metadata update; a hash known only under another version
// of the same package reuses the stored vector without calling the provider.
func (ix *Indexer) Generate(ctx context.Context, chunks []chunk.Input, opts *Options) (Stats, error) {
	if len(chunks) == 0 {
		return Stats{}, nil
	}
	o := opts.withDefaults()

	var processed, newCount, reusedCount atomic.Int64
	var mu sync.Mutex
	candidates := make([]candidate, 0, len(chunks))

	total := len(chunks)
	report := func() {
		o.Progress.Report(int(processed.Load()), total, progress.StageProcessing)
	}
	report()

	// Batches run strictly in sequence; only the chunks inside one batch are
	// embedded concurrently. This bounds peak provider load to one batch.
	for start := 0; start < len(chunks); start += o.BatchSize {
		end := start + o.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.Workers)
		for i := range batch {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				cand, ok, err := ix.processChunk(gctx, &batch[i], o.ChunkTimeout)
				if err != nil {
					return err
				}
				processed.Add(1)
				if ok {
					if cand.fresh {
						newCount.Add(1)
					} else {
						reusedCount.Add(1)
					}
					mu.Lock()
					candidates = append(candidates, cand)
					mu.Unlock()
				}
				report()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Stats{}, err
		}
	}

	if err := ix.persist(ctx, candidates, o.Progress); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		New:    int(newCount.Load()),
		Reused: int(reusedCount.Load()),
	}
	stats.Total = stats.New + stats.Reused

	ix.logger.Info("embedding generation complete",
		zap.Int("total", stats.Total),
		zap.Int("new", stats.New),
		zap.Int("reused", stats.Reused),
		zap.Int("skipped", total-stats.Total))
	return stats, nil
}

// processChunk resolves one chunk to a candidate record. ok=false means the
// chunk was skipped for a recoverable reason; a non-nil error aborts the run.
func (ix *Indexer) processChunk(ctx context.Context, c *chunk.Input, timeout time.Duration) (candidate, bool, error) {
	if err := c.Validate(); err != nil {
		ix.logger.Warn("skipping malformed chunk",
			zap.String("source_file", c.SourceFile),
			zap.Error(err))
		return candidate{}, false, nil
	}

	ver := version.Normalize(c.Version)
	existing, err := ix.store.LookupByHash(ctx, c.Package, ver, c.ContentHash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return candidate{}, false, fmt.Errorf("hash lookup for %s: %w", c.SourceFile, err)
	}

	rec := storage.EmbeddingRecord{
		Package:     c.Package,
		Version:     ver,
		SourceFile:  c.SourceFile,
		StartByte:   &c.StartByte,
		EndByte:     &c.EndByte,
		Text:        c.Text,
		TextSnippet: chunk.Snippet(c.Text),
		ContentHash: c.ContentHash,
		URL:         c.URL,
		Model:       ix.embedder.Model(),
	}
	if c.SourceType != "" {
		rec.SourceType = &c.SourceType
	}

	if existing != nil {
		// Vector reuse: copy the stored vector bit for bit. The upsert key
		// makes a same-version match an in-place metadata update and a
		// cross-version match a new record.
		if len(existing.Vector) != ix.embedder.Dimension() {
			return candidate{}, false, fmt.Errorf("%w: stored %d, want %d (record %d)",
				ErrDimensionMismatch, len(existing.Vector), ix.embedder.Dimension(), existing.ID)
		}
		rec.Vector = existing.Vector
		rec.Dimension = existing.Dimension
		rec.Model = existing.Model
		return candidate{rec: rec, fresh: false}, true, nil
	}

	chunkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	emb, err := ix.embedder.GenerateEmbedding(chunkCtx, embedder.Request{Text: c.Text})
	if err != nil {
		if ctx.Err() != nil {
			return candidate{}, false, ctx.Err()
		}
		ix.logger.Warn("skipping chunk after provider failure",
			zap.String("source_file", c.SourceFile),
			zap.String("content_hash", c.ContentHash),
			zap.Error(err))
		return candidate{}, false, nil
	}
	if len(emb.Vector) == 0 {
		ix.logger.Warn("skipping chunk with empty embedding",
			zap.String("source_file", c.SourceFile),
			zap.String("content_hash", c.ContentHash))
		return candidate{}, false, nil
	}
	if len(emb.Vector) != ix.embedder.Dimension() {
		return candidate{}, false, fmt.Errorf("%w: generated %d, want %d",
			ErrDimensionMismatch, len(emb.Vector), ix.embedder.Dimension())
	}

	rec.Vector = emb.Vector
	rec.Dimension = emb.Dimension
	rec.Model = emb.Model
	return candidate{rec: rec, fresh: true}, true, nil
}

// persist writes every candidate in one transaction so a crash mid-save
// leaves the store exactly as it was before the run.
func (ix *Indexer) persist(ctx context.Context, candidates []candidate, report progress.Func) error {
	if len(candidates) == 0 {
		report.Report(0, 0, progress.StageSaving)
		return nil
	}

	tx, err := ix.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range candidates {
		if err := tx.UpsertRecord(ctx, &candidates[i].rec); err != nil {
			return fmt.Errorf("persist embedding %s: %w", candidates[i].rec.ContentHash, err)
		}
		if (i+1)%DefaultBatchSize == 0 {
			report.Report(i+1, len(candidates), progress.StageSaving)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	report.Report(len(candidates), len(candidates), progress.StageSaving)
	return nil
}
