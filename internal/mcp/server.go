package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/docdex/docdex/internal/config"
	"github.com/docdex/docdex/internal/embedder"
	"github.com/docdex/docdex/internal/indexer"
	"github.com/docdex/docdex/internal/searcher"
	"github.com/docdex/docdex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docdex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	cfg      *config.Config
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    os.Getenv(embedder.EnvOpenAIAPIKey),
		BaseURL:   cfg.Embedding.OllamaURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		store:    store,
		indexer:  indexer.New(store, emb, logger),
		searcher: searcher.New(store, emb, logger),
		cfg:      cfg,
		logger:   logger,
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexPackageTool(), s.handleIndexPackage)
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(checkEmbeddingsTool(), s.handleCheckEmbeddings)
	s.mcp.AddTool(deleteEmbeddingsTool(), s.handleDeleteEmbeddings)
}

// indexerOptions converts the configured tuning values to pipeline options.
func (s *Server) indexerOptions() *indexer.Options {
	return &indexer.Options{
		BatchSize:    s.cfg.Indexing.BatchSize,
		Workers:      s.cfg.Indexing.Workers,
		ChunkTimeout: time.Duration(s.cfg.Indexing.ChunkTimeoutSeconds) * time.Second,
	}
}
