package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/indexer"
	"github.com/dshills/gocontext-search/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams           = -32602 // Invalid method parameters
	ErrorCodeInternalError           = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress      = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery              = -32004 // Query parameter is empty
	ErrorCodeAllRetrievalUnavailable = -32005 // Neither retriever could serve the query
)

// maxReportedErrors bounds the per-file errors echoed by index_path
const maxReportedErrors = 5

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	opts := s.defaults
	opts.FinalLimit = getIntDefault(args, "limit", opts.FinalLimit)
	if opts.FinalLimit < 1 || opts.FinalLimit > types.MaxFinalLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", types.MaxFinalLimit), map[string]interface{}{
			"param": "limit",
			"value": opts.FinalLimit,
		})
	}
	opts.CandidateLimit = getIntDefault(args, "candidate_limit", opts.CandidateLimit)
	if opts.CandidateLimit < 1 || opts.CandidateLimit > types.MaxCandidateLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("candidate_limit must be between 1 and %d", types.MaxCandidateLimit), map[string]interface{}{
			"param": "candidate_limit",
			"value": opts.CandidateLimit,
		})
	}
	opts.UseLexical = getBoolDefault(args, "use_lexical", opts.UseLexical)
	opts.UseSemantic = getBoolDefault(args, "use_semantic", opts.UseSemantic)
	opts.UseReranker = getBoolDefault(args, "use_reranker", opts.UseReranker)
	opts.Explain = getBoolDefault(args, "explain", opts.Explain)

	resp, err := s.searcher.Search(ctx, types.Query{Text: query, Options: opts})
	if err != nil {
		return nil, searchError(err)
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// searchError maps pipeline errors to MCP errors
func searchError(err error) error {
	var all *types.AllRetrievalUnavailableError
	switch {
	case errors.Is(err, types.ErrInvalidQuery):
		return newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.As(err, &all):
		data := map[string]interface{}{}
		if all.Lexical != nil {
			data["lexical_error"] = all.Lexical.Error()
		}
		if all.Semantic != nil {
			data["semantic_error"] = all.Semantic.Error()
		}
		return newMCPError(ErrorCodeAllRetrievalUnavailable, "all retrieval unavailable", data)
	case errors.Is(err, types.ErrAllRetrievalUnavailable):
		return newMCPError(ErrorCodeAllRetrievalUnavailable, "all retrieval unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleIndexPath handles the index_path tool invocation
func (s *Server) handleIndexPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	stats, err := s.indexer.Index(ctx, path)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		s.logger.Error("indexing failed", zap.String("path", path), zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":            true,
		"path":               path,
		"files_indexed":      stats.FilesIndexed,
		"files_skipped":      stats.FilesSkipped,
		"files_failed":       stats.FilesFailed,
		"items_created":      stats.ItemsCreated,
		"vectors_stored":     stats.VectorsStored,
		"embedding_failures": stats.EmbeddingFailures,
		"duration_ms":        stats.Duration.Milliseconds(),
	}

	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.status.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if status.ItemsCount == 0 {
		response := map[string]interface{}{
			"indexed": false,
			"message": "Nothing indexed yet. Use the index_path tool to index files.",
			"health": map[string]interface{}{
				"database_accessible": status.Health.DatabaseAccessible,
			},
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	response := map[string]interface{}{
		"indexed": true,
		"statistics": map[string]interface{}{
			"sources_count":    status.SourcesCount,
			"items_count":      status.ItemsCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
			"last_indexed_at":  status.LastIndexedAt.Format(time.RFC3339),
		},
		"models": status.Models,
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"mixed_models":         status.Health.MixedModels,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
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

// validatePath checks that path is absolute and readable
func validatePath(path string) error {
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

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	if !info.IsDir() && !info.Mode().IsRegular() {
		return ErrNotRegular
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
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

// Validation errors

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotRegular      = errors.New("path is neither a directory nor a regular file")
)
