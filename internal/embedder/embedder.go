package embedder

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrNoVector          = errors.New("provider returned no vector")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is a vector embedding with provider metadata.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// Request asks for a single embedding of Text. Model overrides the
// provider's default model when set.
type Request struct {
	Text  string
	Model string
}

// Embedder is the client for an external embedding provider. One input text
// yields one fixed-dimension vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req Request) (*Embedding, error)

	// Dimension returns the vector dimension produced by the active model.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the default model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache is an in-memory LRU of embeddings keyed by (model, content hash).
// It sits in front of the provider so repeated identical texts within one
// run cost a single API call; the persistent cross-run reuse lives in the
// store, not here.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a cache with LRU eviction. Non-positive sizes fall back
// to a 10k-entry default.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		// Cannot happen with a positive size.
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a deep copy of a cached embedding so caller mutations cannot
// pollute the cache.
func (c *Cache) Get(model, hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(model + "|" + hash)
	if !ok {
		return nil, false
	}

	vector := make([]float32, len(emb.Vector))
	copy(vector, emb.Vector)
	return &Embedding{
		Vector:    vector,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding, evicting the least recently used entry at
// capacity.
func (c *Cache) Set(model, hash string, emb *Embedding) {
	c.cache.Add(model+"|"+hash, emb)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// validateRequest rejects empty input before it reaches a provider.
func validateRequest(req Request) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}
