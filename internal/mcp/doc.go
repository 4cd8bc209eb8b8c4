// Package mcp implements the Model Context Protocol (MCP) server for gocontext.
//
// The server exposes three tools to AI coding assistants:
//   - search: hybrid keyword and semantic search with optional reranking
//   - index_path: ingest a file or directory tree
//   - get_status: index statistics and health
//
// MCP is JSON-RPC 2.0 over stdio. Stdout carries the protocol, so all logging
// goes to stderr.
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {
//	    "query": "searchKnowledgeGraphUnified",
//	    "limit": 10,
//	    "use_reranker": true,
//	    "explain": true
//	  }
//	}
//
// The result is the JSON encoding of types.Response: ranked results with
// per-stage scores and provenance, the routing decision, stage timings and
// diagnostics. A degraded response (one retriever unavailable) is still a
// success; check diagnostics.degraded.
//
// # Tool: index_path
//
//	{"name": "index_path", "arguments": {"path": "/abs/path/to/repo"}}
//
// Only one index run may be active; a concurrent request fails with -32002.
//
// # Error codes
//
//   - -32602: invalid params
//   - -32603: internal error
//   - -32002: indexing in progress
//   - -32004: empty query
//   - -32005: all retrieval unavailable
//
// # Client configuration
//
//	{
//	  "mcpServers": {
//	    "gocontext": {
//	      "command": "/usr/local/bin/gocontext",
//	      "args": ["serve"],
//	      "env": {"JINA_API_KEY": "your-api-key"}
//	    }
//	  }
//	}
package mcp
