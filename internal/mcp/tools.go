package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/docdex/docdex/internal/chunk"
	"github.com/docdex/docdex/internal/progress"
	"github.com/docdex/docdex/internal/searcher"
	"github.com/docdex/docdex/internal/version"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleIndexPackage handles the index_package tool invocation
func (s *Server) handleIndexPackage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validateChunkDir(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	files, err := chunk.Discover(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "chunk discovery failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := make([]chunk.Input, 0, len(files))
	malformed := 0
	for _, f := range files {
		c, err := chunk.Load(f)
		if err != nil {
			s.logger.Warn("skipping unreadable chunk file", zap.String("file", f), zap.Error(err))
			malformed++
			continue
		}
		chunks = append(chunks, *c)
	}

	opts := s.indexerOptions()
	opts.Progress = func(processed, total int, stage progress.Stage) {
		s.logger.Debug("indexing progress",
			zap.Int("processed", processed),
			zap.Int("total", total),
			zap.String("stage", string(stage)))
	}

	stats, err := s.indexer.Generate(ctx, chunks, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "embedding generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":        true,
		"chunks_found":   len(files),
		"embeddings":     stats.Total,
		"new_embeddings": stats.New,
		"reused_vectors": stats.Reused,
		"chunks_skipped": len(chunks) - stats.Total + malformed,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.cfg.Search.TopK)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	var pkg, ver *string
	if v := getStringDefault(args, "package", ""); v != "" {
		pkg = &v
	}
	if v := getStringDefault(args, "version", ""); v != "" {
		ver = &v
	}
	allVersions := getBoolDefault(args, "all_versions", false)

	results := s.searcher.Search(ctx, query, pkg, ver, &searcher.Options{
		TopK:        topK,
		AllVersions: allVersions,
	})

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		item := map[string]interface{}{
			"score":        r.Score,
			"package":      r.Metadata.Package,
			"version":      r.Metadata.Version,
			"source_file":  r.Metadata.SourceFile,
			"text_snippet": r.Metadata.TextSnippet,
			"text":         r.Metadata.Text,
		}
		if r.Metadata.URL != nil {
			item["url"] = *r.Metadata.URL
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"query":        query,
		"result_count": len(items),
		"results":      items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCheckEmbeddings handles the check_embeddings tool invocation
func (s *Server) handleCheckEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var pkg *string
	if v := getStringDefault(args, "package", ""); v != "" {
		pkg = &v
	}
	ver := version.Normalize(getStringDefault(args, "version", version.Latest))

	count, err := s.store.CountScope(ctx, pkg, ver)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count embeddings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"exists":  count > 0,
		"count":   count,
		"version": ver,
	}
	if pkg != nil {
		response["package"] = *pkg
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteEmbeddings handles the delete_embeddings tool invocation.
// A missing package is not an error: the delete is a no-op reporting zero
// removed, so a sloppy caller cannot wipe other packages' embeddings.
func (s *Server) handleDeleteEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	pkg := getStringDefault(args, "package", "")
	ver := version.Normalize(getStringDefault(args, "version", version.Latest))

	deleted, err := s.store.DeleteScope(ctx, pkg, ver)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete embeddings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"deleted": deleted,
		"version": ver,
	}
	if pkg != "" {
		response["package"] = pkg
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateChunkDir checks that a path is an absolute, readable directory
func validateChunkDir(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
