// Package mcp exposes symbol search to MCP clients over stdio.
package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
)

// Engine is the part of indexer.Engine the tools call.
type Engine interface {
	Search(ctx context.Context, query string) (executor.Match, error)
	Order(set index.Set) []string
	Keywords(symbol string) ([]string, bool)
}

var searchToolDef = mcp.NewTool("symbol_search",
	mcp.WithDescription("Find emoji and symbols whose keywords match a free-text query. "+
		"All query words must match a keyword exactly; if nothing matches, keywords containing any word are returned instead."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Words describing the symbol, e.g. \"grinning face\"")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of symbols to return (default 24)")),
)

var keywordsToolDef = mcp.NewTool("symbol_keywords",
	mcp.WithDescription("List the keywords associated with a symbol."),
	mcp.WithString("symbol", mcp.Required(), mcp.Description("The symbol itself, e.g. \"😀\"")),
)

type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"symbol_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"symbol_keywords": {
		def:     keywordsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleKeywords },
	},
}

// AllToolNames returns the registered tool names in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names that are not known tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer registers every tool not listed in cfg.MCP.DisabledTools.
func NewServer(engine Engine, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"glyphgrab",
		version,
		server.WithToolCapabilities(true),
	)
	h := NewHandlers(engine, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	disabled := make(map[string]bool, len(cfg.MCP.DisabledTools))
	for _, name := range cfg.MCP.DisabledTools {
		disabled[name] = true
	}
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools on stdin/stdout until the client disconnects.
func Run(engine Engine, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(engine, cfg, version))
}
