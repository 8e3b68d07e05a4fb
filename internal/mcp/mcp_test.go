package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
)

func testEngine() *indexer.Engine {
	c := corpus.New(
		corpus.Entry{Symbol: "😀", Keywords: []string{"grinning", "face"}},
		corpus.Entry{Symbol: "😁", Keywords: []string{"grinning", "eyes"}},
		corpus.Entry{Symbol: "🐱", Keywords: []string{"cat"}},
	)
	return indexer.NewEngineWithIndex(c, index.Build(c))
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	text, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleSearch(t *testing.T) {
	h := NewHandlers(testEngine(), 24, 500)

	tests := []struct {
		name    string
		args    map[string]any
		want    []string
		phase   string
		isError bool
	}{
		{name: "exact", args: map[string]any{"query": "grinning face"}, want: []string{"😀"}, phase: "exact"},
		{name: "corpus order", args: map[string]any{"query": "grinning"}, want: []string{"😀", "😁"}, phase: "exact"},
		{name: "limit", args: map[string]any{"query": "grinning", "limit": 1}, want: []string{"😀"}, phase: "exact"},
		{name: "fallback", args: map[string]any{"query": "ca"}, want: []string{"🐱"}, phase: "fallback"},
		{name: "no match", args: map[string]any{"query": "xyz123"}, want: []string{}, phase: "none"},
		{name: "missing query", args: map[string]any{}, isError: true},
		{name: "bad limit", args: map[string]any{"query": "cat", "limit": "ten"}, isError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(context.Background(), makeRequest(tt.args))
			require.NoError(t, err)
			if tt.isError {
				assert.True(t, result.IsError)
				assert.Contains(t, resultText(t, result), "INVALID_INPUT")
				return
			}
			require.False(t, result.IsError, resultText(t, result))
			var out SearchOutput
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
			assert.Equal(t, tt.phase, out.Phase)
			assert.Equal(t, tt.want, out.Symbols)
		})
	}
}

func TestHandleKeywords(t *testing.T) {
	h := NewHandlers(testEngine(), 24, 500)

	result, err := h.HandleKeywords(context.Background(), makeRequest(map[string]any{"symbol": "🐱"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var out KeywordsOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, []string{"cat"}, out.Keywords)

	result, err = h.HandleKeywords(context.Background(), makeRequest(map[string]any{"symbol": "🦄"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "NOT_FOUND")
}

func TestServerRegistration(t *testing.T) {
	cfg := config.Default()
	s := NewServer(testEngine(), cfg, "test")
	tools := s.ListTools()
	assert.Len(t, tools, 2)
	for _, name := range AllToolNames() {
		assert.Contains(t, tools, name)
	}
}

func TestServerRegistrationWithDisabledTools(t *testing.T) {
	cfg := config.Default()
	cfg.MCP.DisabledTools = []string{"symbol_keywords"}
	tools := NewServer(testEngine(), cfg, "test").ListTools()
	assert.Len(t, tools, 1)
	assert.Contains(t, tools, "symbol_search")
}

func TestValidateDisabledTools(t *testing.T) {
	assert.Equal(t, []string{"nope"}, ValidateDisabledTools([]string{"symbol_search", "nope"}))
	assert.Empty(t, ValidateDisabledTools(nil))
}
