package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexPackageTool returns the tool definition for index_package
func indexPackageTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_package",
		Description: "Generate embeddings for a directory of documentation chunk files. Unchanged chunks reuse stored vectors instead of calling the embedding provider.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory of chunk JSON files",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Semantic search over indexed documentation. Without a version, only each package's latest indexed version is searched.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one package",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one version of the package",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     3,
					"minimum":     1,
					"maximum":     100,
				},
				"all_versions": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, search every indexed version instead of only the latest",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// checkEmbeddingsTool returns the tool definition for check_embeddings
func checkEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_embeddings",
		Description: "Check whether embeddings exist for a package version and how many",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Package name; omit to check across all packages",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Version to check",
					"default":     "latest",
				},
			},
		},
	}
}

// deleteEmbeddingsTool returns the tool definition for delete_embeddings
func deleteEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_embeddings",
		Description: "Delete all embeddings for one package version. Omitting the package deletes nothing.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Package name",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Version whose embeddings should be removed",
					"default":     "latest",
				},
			},
			Required: []string{"version"},
		},
	}
}
