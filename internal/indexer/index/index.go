// Package index holds the inverted index that maps tokens to the symbols whose
// keywords produced them. An index is built once from a corpus (or restored
// from a store) and is read-only afterwards.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

// TermEntry is one token with the symbols indexed under it, in build order.
type TermEntry struct {
	Term    string
	Symbols []string
}

// InvertedIndex maps Token → ordered Symbol list. Symbols may repeat within a
// list; query code treats them as sets.
type InvertedIndex struct {
	postings map[string][]string
	terms    []string
	size     int
}

// Build indexes every (symbol, keyword) pair of c in corpus order.
func Build(c *corpus.Corpus) *InvertedIndex {
	postings := make(map[string][]string)
	c.Each(func(symbol string, keywords []string) {
		for _, kw := range keywords {
			for _, tok := range tokenizer.Keyword(kw) {
				postings[tok] = append(postings[tok], symbol)
			}
		}
	})
	return seal(postings)
}

// FromMap validates a decoded Token → [Symbol] mapping and wraps it. Stores
// use it so a bad artifact surfaces as ErrIndexMalformed.
func FromMap(m map[string][]string) (*InvertedIndex, error) {
	postings := make(map[string][]string, len(m))
	for term, symbols := range m {
		if term == "" {
			return nil, fmt.Errorf("%w: empty token", apperrors.ErrIndexMalformed)
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("%w: token %q has no symbols", apperrors.ErrIndexMalformed, term)
		}
		list := make([]string, len(symbols))
		copy(list, symbols)
		postings[term] = list
	}
	return seal(postings), nil
}

func seal(postings map[string][]string) *InvertedIndex {
	terms := make([]string, 0, len(postings))
	size := 0
	for term, symbols := range postings {
		terms = append(terms, term)
		size += len(symbols)
	}
	sort.Strings(terms)
	return &InvertedIndex{
		postings: postings,
		terms:    terms,
		size:     size,
	}
}

// Lookup returns the symbols indexed under term. The slice must not be
// modified.
func (ix *InvertedIndex) Lookup(term string) ([]string, bool) {
	symbols, ok := ix.postings[term]
	return symbols, ok
}

// Terms returns all tokens in lexical order. The slice must not be modified.
func (ix *InvertedIndex) Terms() []string {
	return ix.terms
}

// Len returns the number of distinct tokens.
func (ix *InvertedIndex) Len() int {
	return len(ix.terms)
}

// Postings returns the total number of token → symbol entries, duplicates
// included.
func (ix *InvertedIndex) Postings() int {
	return ix.size
}

// Entries returns a sorted snapshot of the index.
func (ix *InvertedIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(ix.terms))
	for _, term := range ix.terms {
		symbols := make([]string, len(ix.postings[term]))
		copy(symbols, ix.postings[term])
		entries = append(entries, TermEntry{Term: term, Symbols: symbols})
	}
	return entries
}

// Map returns a copy of the Token → [Symbol] mapping.
func (ix *InvertedIndex) Map() map[string][]string {
	out := make(map[string][]string, len(ix.postings))
	for term, symbols := range ix.postings {
		list := make([]string, len(symbols))
		copy(list, symbols)
		out[term] = list
	}
	return out
}

// EqualSets reports whether both indexes have the same tokens and, for each
// token, the same set of symbols. Order and duplicates are ignored.
func (ix *InvertedIndex) EqualSets(other *InvertedIndex) bool {
	if ix.Len() != other.Len() {
		return false
	}
	for term, symbols := range ix.postings {
		theirs, ok := other.postings[term]
		if !ok {
			return false
		}
		if !NewSet(symbols...).Equal(NewSet(theirs...)) {
			return false
		}
	}
	return true
}
