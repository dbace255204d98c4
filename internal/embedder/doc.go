// Package embedder provides clients for external embedding providers.
//
// One input text yields one fixed-dimension float32 vector. The dimension is
// fixed per model (384 for the default all-minilm model) and must match the
// store's configured dimension.
//
// # Provider Selection
//
// The factory picks a provider from the environment:
//
//  1. If DOCDEX_EMBEDDING_PROVIDER is set -> use the named provider
//  2. Else if OPENAI_API_KEY is set -> use OpenAI
//  3. Else -> Ollama on localhost (no key required)
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.Request{
//	    Text: "Supervision trees restart crashed processes.",
//	})
//
// # Caching
//
// Providers share an in-memory LRU cache keyed by (model, content hash) so
// that repeated identical texts within one process cost a single API call.
// Cross-run reuse is handled by the persistent store, not by this cache.
//
// # Failure Handling
//
// Calls retry with exponential backoff; exhausted retries surface as
// ErrProviderFailed. A well-formed response that carries no vector is
// ErrNoVector. Both are treated as recoverable per-item failures by the
// indexing pipeline.
package embedder
