// Package indexer turns documentation chunks into persisted embeddings.
//
// The pipeline is incremental: a chunk's sha-256 content hash is checked
// against the store before any provider call, so unchanged text across
// re-indexing runs and across package versions never costs an API request.
// Per-chunk failures are logged and skipped; a run only fails outright on
// storage errors or a vector dimension that cannot be stored consistently.
// All surviving records are committed in one transaction.
package indexer
