// Package corpus loads the symbol → keywords mapping that the search index is
// built from. Symbol order from the source file is preserved and doubles as
// the presentation order for search results.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

// Format identifies the encoding of a corpus file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks the format from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Entry is one symbol with its keywords, as authored.
type Entry struct {
	Symbol   string
	Keywords []string
}

// Corpus is an ordered, read-only Symbol → Keywords mapping.
type Corpus struct {
	symbols  []string
	keywords map[string][]string
	position map[string]int
}

// Empty returns a corpus with no symbols.
func Empty() *Corpus {
	return &Corpus{
		keywords: make(map[string][]string),
		position: make(map[string]int),
	}
}

// New builds a corpus from entries in order. A repeated symbol replaces the
// earlier keyword list but keeps the earlier position.
func New(entries ...Entry) *Corpus {
	c := Empty()
	for _, e := range entries {
		c.add(e.Symbol, e.Keywords)
	}
	return c
}

func (c *Corpus) add(symbol string, keywords []string) {
	kws := make([]string, len(keywords))
	copy(kws, keywords)
	if _, exists := c.position[symbol]; !exists {
		c.position[symbol] = len(c.symbols)
		c.symbols = append(c.symbols, symbol)
	}
	c.keywords[symbol] = kws
}

// Load reads and decodes the corpus at path. On failure it returns an empty
// corpus together with an error wrapping ErrCorpusUnavailable or
// ErrCorpusMalformed; partial data is never returned.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("%w: reading %s: %v", apperrors.ErrCorpusUnavailable, path, err)
	}
	c, err := Parse(data, FormatForPath(path))
	if err != nil {
		return Empty(), fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes corpus bytes in the given format.
func Parse(data []byte, format Format) (*Corpus, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return Empty(), fmt.Errorf("%w: invalid UTF-8", apperrors.ErrCorpusMalformed)
	}
	var (
		c   *Corpus
		err error
	)
	switch format {
	case FormatYAML:
		c, err = parseYAML(data)
	default:
		c, err = parseJSON(data)
	}
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", apperrors.ErrCorpusMalformed, err)
	}
	return c, nil
}

// parseJSON walks the top-level object token by token so key order survives.
func parseJSON(data []byte) (*Corpus, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("top level must be an object, got %v", tok)
	}
	c := Empty()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading symbol: %w", err)
		}
		symbol, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading keywords for %q: %w", symbol, err)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("keywords for %q must be a list, got null", symbol)
		}
		var keywords []string
		if err := json.Unmarshal(raw, &keywords); err != nil {
			return nil, fmt.Errorf("keywords for %q must be a list of strings: %w", symbol, err)
		}
		c.add(symbol, keywords)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading closing token: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return c, nil
}

func parseYAML(data []byte) (*Corpus, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return nil, fmt.Errorf("expected a single yaml document")
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping")
	}
	c := Empty()
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: symbol must be a scalar", key.Line)
		}
		if value.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: keywords for %q must be a list", value.Line, key.Value)
		}
		keywords := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
				return nil, fmt.Errorf("line %d: keyword for %q must be a string", item.Line, key.Value)
			}
			keywords = append(keywords, item.Value)
		}
		c.add(key.Value, keywords)
	}
	return c, nil
}

// Len returns the number of symbols.
func (c *Corpus) Len() int {
	return len(c.symbols)
}

// Symbols returns a copy of all symbols in source order.
func (c *Corpus) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Keywords returns a copy of the keywords for symbol.
func (c *Corpus) Keywords(symbol string) ([]string, bool) {
	kws, ok := c.keywords[symbol]
	if !ok {
		return nil, false
	}
	out := make([]string, len(kws))
	copy(out, kws)
	return out, true
}

// Each calls fn for every symbol in source order. The keyword slice must not
// be modified.
func (c *Corpus) Each(fn func(symbol string, keywords []string)) {
	for _, symbol := range c.symbols {
		fn(symbol, c.keywords[symbol])
	}
}

// Chunk returns up to count symbols starting at start, for paginated display.
func (c *Corpus) Chunk(start, count int) []string {
	if start < 0 {
		start = 0
	}
	if count <= 0 || start >= len(c.symbols) {
		return []string{}
	}
	count = min(count, len(c.symbols)-start)
	out := make([]string, count)
	copy(out, c.symbols[start:start+count])
	return out
}

// Order sorts symbols into corpus order. Symbols not in the corpus go last
// in lexical order.
func (c *Corpus) Order(symbols []string) []string {
	out := make([]string, len(symbols))
	copy(out, symbols)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := c.position[out[i]]
		pj, jok := c.position[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}
