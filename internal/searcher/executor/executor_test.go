package executor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
)

func buildIndex(entries ...corpus.Entry) *index.InvertedIndex {
	return index.Build(corpus.New(entries...))
}

func smileys() *index.InvertedIndex {
	return buildIndex(
		corpus.Entry{Symbol: "😀", Keywords: []string{"grinning", "face"}},
		corpus.Entry{Symbol: "😁", Keywords: []string{"grinning", "eyes"}},
		corpus.Entry{Symbol: "🐱", Keywords: []string{"cat_face", "pet"}},
	)
}

func TestExecuteExactIntersection(t *testing.T) {
	ix := smileys()

	m := Execute(ix, "grinning face")
	assert.Equal(t, PhaseExact, m.Phase)
	assert.Equal(t, []string{"😀"}, m.Symbols.Sorted())
	assert.Equal(t, []string{"grinning", "face"}, m.Tokens)

	m = Execute(ix, "grinning")
	assert.Equal(t, PhaseExact, m.Phase)
	assert.ElementsMatch(t, []string{"😀", "😁"}, m.Symbols.Sorted())
}

func TestExecuteSkipsUnknownTokens(t *testing.T) {
	m := Execute(smileys(), "grinning zebra eyes")
	assert.Equal(t, PhaseExact, m.Phase)
	assert.Equal(t, []string{"😁"}, m.Symbols.Sorted())
}

func TestExecuteCompoundParts(t *testing.T) {
	ix := smileys()
	for _, q := range []string{"cat", "face", "cat_face"} {
		m := Execute(ix, q)
		assert.Equal(t, PhaseExact, m.Phase, q)
		assert.True(t, m.Symbols.Has("🐱"), "query %q", q)
	}
}

func TestExecuteFallbackUnion(t *testing.T) {
	ix := smileys()

	m := Execute(ix, "grin")
	assert.Equal(t, PhaseFallback, m.Phase)
	assert.ElementsMatch(t, []string{"😀", "😁"}, m.Symbols.Sorted())

	// "ey" hits "eyes" and "pe" hits "pet": the fallback unions both.
	m = Execute(ix, "ey pe")
	assert.Equal(t, PhaseFallback, m.Phase)
	assert.ElementsMatch(t, []string{"😁", "🐱"}, m.Symbols.Sorted())
}

func TestExecuteEmptiedIntersectionFallsBack(t *testing.T) {
	// "eyes" and "pet" both match exactly but share no symbol.
	m := Execute(smileys(), "eyes pet")
	assert.Equal(t, PhaseFallback, m.Phase)
	assert.ElementsMatch(t, []string{"😁", "🐱"}, m.Symbols.Sorted())
}

func TestExecuteNoMatch(t *testing.T) {
	m := Execute(smileys(), "xyz123")
	assert.Equal(t, PhaseNone, m.Phase)
	assert.Empty(t, m.Symbols)
	require.NotNil(t, m.Symbols)
}

func TestExecuteEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "?!,."} {
		m := Execute(smileys(), q)
		assert.Equal(t, PhaseNone, m.Phase)
		assert.Empty(t, m.Symbols)
		assert.Empty(t, m.Tokens)
	}
}

func TestExecuteEmptyQueryDoesNotTouchIndex(t *testing.T) {
	var ix *index.InvertedIndex
	assert.NotPanics(t, func() {
		assert.Empty(t, Search(ix, "  "))
	})
}

func TestExecuteIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"😀"}, Search(smileys(), "GRINNING Face").Sorted())
}

func TestEveryKeywordFindsItsSymbol(t *testing.T) {
	entries := []corpus.Entry{
		{Symbol: "👍", Keywords: []string{"thumbs up", "+1", "like"}},
		{Symbol: "🇯🇵", Keywords: []string{"flag: japan", "jp"}},
		{Symbol: "😂", Keywords: []string{"face_with_tears_of_joy", "lol"}},
		{Symbol: "🅰", Keywords: []string{"a", "blood_type_a"}},
		{Symbol: "🦖", Keywords: []string{"t-rex"}},
	}
	ix := buildIndex(entries...)
	for _, e := range entries {
		for _, kw := range e.Keywords {
			m := Execute(ix, kw)
			assert.Equal(t, PhaseExact, m.Phase, "keyword %q", kw)
			assert.True(t, m.Symbols.Has(e.Symbol), "keyword %q should find %s", kw, e.Symbol)
		}
	}
}

func TestSingleRuneWordsAreNotIndexed(t *testing.T) {
	ix := buildIndex(corpus.Entry{Symbol: "🦖", Keywords: []string{"t-rex"}})
	_, ok := ix.Lookup("t")
	assert.False(t, ok)
}

func TestDuplicatePostingsCollapse(t *testing.T) {
	ix := buildIndex(corpus.Entry{Symbol: "😀", Keywords: []string{"smile", "smile", "smile_face"}})
	m := Execute(ix, "smile")
	assert.Len(t, m.Symbols, 1)
}

func BenchmarkExecute(b *testing.B) {
	entries := make([]corpus.Entry, 3000)
	for i := range entries {
		entries[i] = corpus.Entry{
			Symbol:   fmt.Sprintf("sym-%d", i),
			Keywords: []string{fmt.Sprintf("tag%d", i%40), "smiling_face", fmt.Sprintf("group_%d", i%7)},
		}
	}
	ix := buildIndex(entries...)
	for _, q := range []string{"smiling face", "tag3 group", "miling", "zzz"} {
		b.Run(q, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Execute(ix, q)
			}
		})
	}
}
