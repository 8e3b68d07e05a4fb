// Package tokenizer turns query text and corpus keywords into index tokens.
// Query text is lower-cased and split into runs of word runes (letters,
// numbers and underscore). Keywords are indexed whole, and compound keywords
// additionally contribute their parts.
package tokenizer

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// isWordRune reports whether r belongs inside a token.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

func notWordRune(r rune) bool {
	return !isWordRune(r)
}

func isLong(word string) bool {
	return utf8.RuneCountInString(word) > 1
}

// Query splits free text into lower-cased tokens. Underscore compounds are not
// split, so "grinning_face" stays a single token.
func Query(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), notWordRune)
	if len(words) == 0 {
		return nil
	}
	return words
}

// Keyword returns the distinct tokens a single corpus keyword is indexed
// under, in first-seen order. The whole keyword comes first. A keyword with
// separators other than underscore also yields each of its words, and an
// underscore compound yields every part longer than one rune. Single-rune
// words are kept only when the keyword has nothing longer.
func Keyword(keyword string) []string {
	kw := strings.TrimSpace(strings.ToLower(keyword))
	if kw == "" {
		return nil
	}

	tokens := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(tok string) {
		if tok == "" {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	add(kw)

	words := []string{kw}
	if strings.IndexFunc(kw, notWordRune) >= 0 {
		words = strings.FieldsFunc(kw, notWordRune)
		// Single-rune words are only indexed when the keyword has no longer
		// word to be found by.
		keepShort := !slices.ContainsFunc(words, isLong)
		for _, w := range words {
			if keepShort || isLong(w) {
				add(w)
			}
		}
	}

	for _, w := range words {
		if !strings.Contains(w, "_") {
			continue
		}
		for _, part := range strings.Split(w, "_") {
			if isLong(part) {
				add(part)
			}
		}
	}
	return tokens
}
