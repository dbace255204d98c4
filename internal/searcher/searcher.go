package searcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/docdex/docdex/internal/embedder"
	"github.com/docdex/docdex/internal/progress"
	"github.com/docdex/docdex/internal/storage"
	"github.com/docdex/docdex/internal/version"
)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 3

// Options tunes a search. The zero value searches the latest version of each
// package and returns DefaultTopK results.
type Options struct {
	TopK        int
	AllVersions bool
	Progress    progress.Func
}

// Metadata identifies where a result came from.
type Metadata struct {
	ID          int64
	Package     string
	Version     string
	SourceFile  string
	TextSnippet string
	URL         *string
	Text        string
}

// Result is one search hit. Score is the raw Euclidean distance between the
// query vector and the stored vector: lower is closer, and results are
// ordered ascending.
type Result struct {
	Score    float64
	Metadata Metadata
}

// Searcher answers semantic queries over the embedding store.
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	logger   *zap.Logger
}

// New creates a searcher. A nil logger disables logging.
func New(store storage.Store, emb embedder.Embedder, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: store, embedder: emb, logger: logger}
}

// Search embeds the query and returns the nearest stored chunks. A nil pkg
// searches every package; a nil ver searches only each package's latest
// version unless AllVersions is set. Search degrades instead of failing: any
// provider or storage error is logged and yields an empty result set.
func (s *Searcher) Search(ctx context.Context, query string, pkg, ver *string, opts *Options) []Result {
	o := Options{TopK: DefaultTopK}
	if opts != nil {
		o = *opts
		if o.TopK <= 0 {
			o.TopK = DefaultTopK
		}
	}

	o.Progress.Report(0, 2, progress.StageGenerating)
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.Request{Text: query})
	if err != nil {
		s.logger.Warn("query embedding failed", zap.Error(err))
		return []Result{}
	}
	o.Progress.Report(1, 2, progress.StageGenerating)

	filter := storage.ScopeFilter{Package: pkg}
	latestOnly := ver == nil && !o.AllVersions
	limit := o.TopK
	if ver != nil {
		v := version.Normalize(*ver)
		filter.Version = &v
	}
	if latestOnly {
		// Rank the whole scope first: the latest-version filter runs after
		// distance ranking, and a pre-truncated list could lose every hit
		// from the winning version.
		limit = 0
	}

	o.Progress.Report(0, 1, progress.StageSearching)
	nearest, err := s.store.SearchNearest(ctx, emb.Vector, filter, limit)
	if err != nil {
		s.logger.Warn("vector search failed", zap.Error(err))
		return []Result{}
	}

	if latestOnly {
		nearest = version.FilterLatest(nearest,
			func(n storage.NearestResult) string { return n.Record.Package },
			func(n storage.NearestResult) string { return n.Record.Version })
		if len(nearest) > o.TopK {
			nearest = nearest[:o.TopK]
		}
	}
	o.Progress.Report(1, 1, progress.StageSearching)

	results := make([]Result, 0, len(nearest))
	for _, n := range nearest {
		results = append(results, Result{
			Score: n.Distance,
			Metadata: Metadata{
				ID:          n.Record.ID,
				Package:     n.Record.Package,
				Version:     n.Record.Version,
				SourceFile:  n.Record.SourceFile,
				TextSnippet: n.Record.TextSnippet,
				URL:         n.Record.URL,
				Text:        n.Record.Text,
			},
		})
	}
	return results
}
