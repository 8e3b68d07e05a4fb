package corpus

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJSONPreservesOrder(t *testing.T) {
	path := writeFile(t, "emoji.json", `{
  "😁": ["grinning", "eyes"],
  "😀": ["grinning", "face", "face"],
  "🫥": []
}`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"😁", "😀", "🫥"}, c.Symbols())
	kws, ok := c.Keywords("😀")
	require.True(t, ok)
	assert.Equal(t, []string{"grinning", "face", "face"}, kws, "duplicates are preserved")

	kws, ok = c.Keywords("🫥")
	require.True(t, ok)
	assert.Empty(t, kws)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "emoji.yaml", `
"😀": [grinning_face, smile]
"🐱":
  - cat
  - animal
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"😀", "🐱"}, c.Symbols())
	kws, _ := c.Keywords("🐱")
	assert.Equal(t, []string{"cat", "animal"}, kws)
}

func TestLoadMissingFileIsUnavailable(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCorpusUnavailable))
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestLoadMalformed(t *testing.T) {
	cases := map[string]string{
		"array top level":   `["😀"]`,
		"keywords not list": `{"😀": "grinning"}`,
		"null keywords":     `{"😀": null}`,
		"number keyword":    `{"😀": ["a", 1]}`,
		"truncated":         `{"😀": ["a"]`,
		"trailing data":     `{"😀": ["a"]} {}`,
		"empty file":        ``,
		"partial then bad":  `{"😀": ["a"], "😁": 3}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Load(writeFile(t, "c.json", body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrCorpusMalformed), "got %v", err)
			assert.Equal(t, 0, c.Len(), "no partial data on failure")
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	for name, body := range map[string]string{
		"sequence top level": "- a\n- b\n",
		"scalar keywords":    "x: grin\n",
		"nested mapping":     "x:\n  - {a: b}\n",
		"null keyword":       "x: [a, ~]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yml", body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrCorpusMalformed), "got %v", err)
		})
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("{\"\xff\": []}"), FormatJSON)
	assert.True(t, errors.Is(err, apperrors.ErrCorpusMalformed))
}

func TestParseStripsBOM(t *testing.T) {
	c, err := Parse([]byte("\xef\xbb\xbf{\"a\": [\"b\"]}"), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestDuplicateSymbolKeepsFirstPosition(t *testing.T) {
	c, err := Parse([]byte(`{"a": ["x"], "b": ["y"], "a": ["z"]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Symbols())
	kws, _ := c.Keywords("a")
	assert.Equal(t, []string{"z"}, kws)
}

func TestChunk(t *testing.T) {
	c := New(
		Entry{Symbol: "a"}, Entry{Symbol: "b"}, Entry{Symbol: "c"},
		Entry{Symbol: "d"}, Entry{Symbol: "e"},
	)
	assert.Equal(t, []string{"a", "b"}, c.Chunk(0, 2))
	assert.Equal(t, []string{"d", "e"}, c.Chunk(3, 100))
	assert.Empty(t, c.Chunk(5, 2))
	assert.Empty(t, c.Chunk(1, 0))
	assert.Equal(t, []string{"a"}, c.Chunk(-3, 1))
	assert.Equal(t, []string{"b", "c", "d", "e"}, c.Chunk(1, math.MaxInt))
	assert.Empty(t, c.Chunk(math.MaxInt, math.MaxInt))
}

func TestOrder(t *testing.T) {
	c := New(Entry{Symbol: "😀"}, Entry{Symbol: "😁"}, Entry{Symbol: "🐱"})
	got := c.Order([]string{"🐱", "zz", "😀", "aa", "😁"})
	assert.Equal(t, []string{"😀", "😁", "🐱", "aa", "zz"}, got)
}

func TestKeywordsReturnsCopy(t *testing.T) {
	c := New(Entry{Symbol: "a", Keywords: []string{"x"}})
	kws, _ := c.Keywords("a")
	kws[0] = "mutated"
	again, _ := c.Keywords("a")
	assert.Equal(t, []string{"x"}, again)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("a/b.YAML"))
	assert.Equal(t, FormatYAML, FormatForPath("b.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("b.json"))
	assert.Equal(t, FormatJSON, FormatForPath("b"))
}
