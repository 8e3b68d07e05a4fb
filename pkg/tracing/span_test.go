package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")

	ctx, root := Start(ctx, "search")
	assert.Equal(t, "req-1", root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	_, child := Start(ctx, "execute")
	child.SetAttr("phase", "exact")
	child.End(ctx)

	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "exact", child.Attrs["phase"])
}

func TestRootEndLogsTree(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, root := Start(context.Background(), "search")
	_, child := Start(ctx, "cache")
	child.End(ctx)
	assert.Empty(t, buf.String(), "child spans do not log on their own")

	root.End(ctx)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"span":"search"`)
	assert.Contains(t, lines[1], `"span":"cache"`)
	assert.Contains(t, lines[1], `"depth":1`)
}
