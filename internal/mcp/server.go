package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/indexer"
	"github.com/dshills/gocontext-search/internal/storage"
	"github.com/dshills/gocontext-search/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "gocontext-search"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// SearchService runs a hybrid query
type SearchService interface {
	Search(ctx context.Context, q types.Query) (*types.Response, error)
}

// IndexService ingests a path. It returns indexer.ErrIndexingInProgress
// when a run is already active.
type IndexService interface {
	Index(ctx context.Context, path string) (*indexer.Statistics, error)
}

// StatusService reports content store statistics
type StatusService interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher SearchService
	indexer  IndexService
	status   StatusService
	defaults types.Options
	logger   *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the options applied to search calls before tool
// arguments are read
func WithDefaults(opts types.Options) Option {
	return func(s *Server) {
		s.defaults = opts
	}
}

// NewServer creates a new MCP server instance and registers its tools
func NewServer(search SearchService, idx IndexService, status StatusService, opts ...Option) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		searcher: search,
		indexer:  idx,
		status:   status,
		defaults: types.DefaultOptions(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol over stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("MCP server ready, listening on stdio")
	return stdio.Listen(ctx, stdin, stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
