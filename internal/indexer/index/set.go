package index

import "sort"

// Set is an unordered collection of symbols.
type Set map[string]struct{}

func NewSet(symbols ...string) Set {
	s := make(Set, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	return s
}

func (s Set) Has(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Intersect returns the members present in both sets, iterating over the
// smaller one.
func (s Set) Intersect(other Set) Set {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set, len(small))
	for sym := range small {
		if _, ok := large[sym]; ok {
			out[sym] = struct{}{}
		}
	}
	return out
}

// Union adds symbols to s in place.
func (s Set) Union(symbols ...string) {
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for sym := range s {
		if _, ok := other[sym]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
