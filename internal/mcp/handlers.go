package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

type Handlers struct {
	engine       Engine
	defaultLimit int
	maxResults   int
}

func NewHandlers(engine Engine, defaultLimit, maxResults int) *Handlers {
	return &Handlers{engine: engine, defaultLimit: defaultLimit, maxResults: maxResults}
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchOutput struct {
	Query     string   `json:"query"`
	Phase     string   `json:"phase"`
	TotalHits int      `json:"total_hits"`
	Symbols   []string `json:"symbols"`
}

type KeywordsRequest struct {
	Symbol string `json:"symbol"`
}

type KeywordsOutput struct {
	Symbol   string   `json:"symbol"`
	Keywords []string `json:"keywords"`
}

func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorResult(fmt.Errorf("%w: query is required", apperrors.ErrInvalidInput)), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}

	m, err := h.engine.Search(ctx, args.Query)
	if err != nil {
		return errorResult(err), nil
	}
	ordered := h.engine.Order(m.Symbols)
	out := SearchOutput{
		Query:     args.Query,
		Phase:     string(m.Phase),
		TotalHits: len(ordered),
		Symbols:   ordered,
	}
	if len(ordered) > limit {
		out.Symbols = ordered[:limit]
	}
	return successResult(out)
}

func (h *Handlers) HandleKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[KeywordsRequest](req)
	if err != nil {
		return errorResult(fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)), nil
	}
	if args.Symbol == "" {
		return errorResult(fmt.Errorf("%w: symbol is required", apperrors.ErrInvalidInput)), nil
	}
	keywords, ok := h.engine.Keywords(args.Symbol)
	if !ok {
		return errorResult(fmt.Errorf("%w: unknown symbol %q", apperrors.ErrNotFound, args.Symbol)), nil
	}
	return successResult(KeywordsOutput{Symbol: args.Symbol, Keywords: keywords})
}

// errorResult reports err to the client with IsError set. Errors outside the
// known sentinels are reported as internal without their text.
func errorResult(err error) *mcp.CallToolResult {
	code, message := "INTERNAL", "an internal error occurred"
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		code, message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		code, message = "NOT_FOUND", err.Error()
	case errors.Is(err, apperrors.ErrCorpusUnavailable),
		errors.Is(err, apperrors.ErrCorpusMalformed),
		errors.Is(err, apperrors.ErrIndexNotReady):
		code, message = "UNAVAILABLE", err.Error()
	}
	content, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  apperrors.HTTPStatusCode(err),
		},
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

// decode round-trips the request arguments through JSON into T.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}
