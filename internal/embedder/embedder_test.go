package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_DeepCopyOnGet(t *testing.T) {
	cache := NewCache(10)
	cache.Set("m", "h", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

	got, ok := cache.Get("m", "h")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("m", "h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0], "caller mutations must not pollute the cache")
}

func TestCache_KeyedByModelAndHash(t *testing.T) {
	cache := NewCache(10)
	cache.Set("model-a", "h", &Embedding{Vector: []float32{1}})

	_, ok := cache.Get("model-b", "h")
	assert.False(t, ok)
	_, ok = cache.Get("model-a", "other")
	assert.False(t, ok)
	_, ok = cache.Get("model-a", "h")
	assert.True(t, ok)
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("m", "a", &Embedding{Vector: []float32{1}})
	cache.Set("m", "b", &Embedding{Vector: []float32{2}})
	cache.Set("m", "c", &Embedding{Vector: []float32{3}})

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("m", "a")
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestLocalProvider_Deterministic(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, Request{Text: "supervision trees"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, Request{Text: "supervision trees"})
	require.NoError(t, err)
	c, err := p.GenerateEmbedding(ctx, Request{Text: "different text"})
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.NotEqual(t, a.Vector, c.Vector)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, ComputeHash("supervision trees"), a.Hash)
}

func TestValidateRequest_EmptyText(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), Request{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOllamaProvider_WireFormat(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "all-minilm",
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "all-minilm", nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), Request{Text: "hello docs"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, ProviderOllama, emb.Provider)
	assert.Equal(t, "all-minilm", gotBody["model"])
	assert.Equal(t, "hello docs", gotBody["input"])
}

func TestOllamaProvider_EmptyEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "all-minilm",
			"embeddings": [][]float32{},
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "all-minilm", nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), Request{Text: "hello"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestOllamaProvider_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "all-minilm",
			"embeddings": [][]float32{{1}},
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "all-minilm", nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), Request{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, emb.Vector)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOllamaProvider_CachesByContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "all-minilm",
			"embeddings": [][]float32{{1, 2}},
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "all-minilm", NewCache(10))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.GenerateEmbedding(ctx, Request{Text: "same text"})
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(ctx, Request{Text: "same text"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewOllamaProvider_UnknownModel(t *testing.T) {
	_, err := NewOllamaProvider("", "made-up-model", nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "quantum"})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	emb, err := New(Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, emb.Model())
	assert.Equal(t, 384, emb.Dimension())
}
