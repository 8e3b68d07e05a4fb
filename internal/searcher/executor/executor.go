// Package executor answers keyword queries against an inverted index. A query
// is first matched exactly, intersecting the symbols of every query token
// found in the index. When that yields nothing, each query token is matched
// as a substring of the index tokens and the hits are unioned.
package executor

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/tokenizer"
)

// Phase records which matching tier produced a result.
type Phase string

const (
	PhaseNone     Phase = "none"
	PhaseExact    Phase = "exact"
	PhaseFallback Phase = "fallback"
)

// Match is the outcome of one query.
type Match struct {
	Tokens  []string
	Symbols index.Set
	Phase   Phase
}

// Execute tokenizes query and runs both phases over ix.
func Execute(ix *index.InvertedIndex, query string) Match {
	tokens := tokenizer.Query(query)
	if len(tokens) == 0 {
		return Match{Symbols: index.NewSet(), Phase: PhaseNone}
	}
	if exact := intersectTokens(ix, tokens); len(exact) > 0 {
		return Match{Tokens: tokens, Symbols: exact, Phase: PhaseExact}
	}
	fuzzy := unionSubstrings(ix, tokens)
	phase := PhaseFallback
	if len(fuzzy) == 0 {
		phase = PhaseNone
	}
	return Match{Tokens: tokens, Symbols: fuzzy, Phase: phase}
}

// Search returns only the matched symbols.
func Search(ix *index.InvertedIndex, query string) index.Set {
	return Execute(ix, query).Symbols
}

// intersectTokens ANDs the symbol sets of the query tokens present in the
// index. Tokens missing from the index are skipped rather than emptying the
// result.
func intersectTokens(ix *index.InvertedIndex, tokens []string) index.Set {
	var result index.Set
	for _, tok := range tokens {
		symbols, ok := ix.Lookup(tok)
		if !ok {
			continue
		}
		if result == nil {
			result = index.NewSet(symbols...)
			continue
		}
		result = result.Intersect(index.NewSet(symbols...))
	}
	return result
}

// unionSubstrings ORs the symbols of every index token that contains any query
// token.
func unionSubstrings(ix *index.InvertedIndex, tokens []string) index.Set {
	result := index.NewSet()
	for _, term := range ix.Terms() {
		for _, tok := range tokens {
			if strings.Contains(term, tok) {
				symbols, _ := ix.Lookup(term)
				result.Union(symbols...)
				break
			}
		}
	}
	return result
}
