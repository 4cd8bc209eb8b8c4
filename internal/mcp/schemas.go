package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gocontext-search/pkg/types"
)

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Hybrid search over indexed code and documentation. Combines keyword and semantic retrieval, weighted by query type, with optional reranking.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query: an identifier, a file name or a natural language question",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     types.DefaultFinalLimit,
					"minimum":     1,
					"maximum":     types.MaxFinalLimit,
				},
				"candidate_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates gathered per retriever before fusion",
					"default":     types.DefaultCandidateLimit,
					"minimum":     1,
					"maximum":     types.MaxCandidateLimit,
				},
				"use_lexical": map[string]interface{}{
					"type":        "boolean",
					"description": "Run keyword retrieval",
					"default":     true,
				},
				"use_semantic": map[string]interface{}{
					"type":        "boolean",
					"description": "Run embedding similarity retrieval",
					"default":     true,
				},
				"use_reranker": map[string]interface{}{
					"type":        "boolean",
					"description": "Rerank the head of the fused list with the configured reranker",
					"default":     false,
				},
				"explain": map[string]interface{}{
					"type":        "boolean",
					"description": "Include routing reasoning and per-result keyword match explanations",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexPathTool returns the tool definition for index_path
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Index a file or directory tree so it becomes searchable. Unchanged files are skipped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory or file",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics, stored embedding models and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
