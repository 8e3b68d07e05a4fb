package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/mcp"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/logger"
)

// session holds what the global flags resolve to. The engine is opened by
// each command that needs it.
type session struct {
	cfg *config.Config
}

func (s *session) engine(ctx context.Context) (*indexer.Engine, error) {
	return indexer.Open(ctx, s.cfg, nil)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	s := &session{}
	app := &cli.App{
		Name:      "glyph",
		Usage:     "Find emoji and symbols by keyword",
		Version:   Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug|info|warn|error"},
			&cli.StringFlag{Name: "corpus", Usage: "Override corpus.path"},
			&cli.StringFlag{Name: "store-driver", Usage: "Override store.driver"},
			&cli.StringFlag{Name: "store-path", Usage: "Override store.path"},
		},
		Before: func(c *cli.Context) error {
			var err error
			if path := c.String("config"); path != "" {
				s.cfg, err = config.Load(path)
			} else {
				s.cfg = config.Default()
			}
			if err != nil {
				return err
			}
			if v := c.String("corpus"); v != "" {
				s.cfg.Corpus.Path = v
			}
			if v := c.String("store-driver"); v != "" {
				s.cfg.Store.Driver = v
			}
			if v := c.String("store-path"); v != "" {
				s.cfg.Store.Path = v
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}
			logger.SetupWriter(stderr, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			searchCmd(s),
			keywordsCmd(s),
			symbolsCmd(s),
			rebuildCmd(s),
			mcpCmd(s),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func searchCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search symbols by keywords",
		ArgsUsage: "<query words...>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results (default search.defaultLimit)"},
			&cli.BoolFlag{Name: "plain", Usage: "Print symbols separated by spaces instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("%w: search needs a query", apperrors.ErrInvalidInput)
			}
			engine, err := s.engine(c.Context)
			if err != nil {
				return err
			}
			defer engine.Close()

			m, err := engine.Search(c.Context, query)
			if err != nil {
				return err
			}
			ordered := engine.Order(m.Symbols)
			limit := c.Int("limit")
			if limit <= 0 {
				limit = s.cfg.Search.DefaultLimit
			}
			results := ordered
			if len(results) > limit {
				results = results[:limit]
			}
			if c.Bool("plain") {
				_, err := fmt.Fprintln(c.App.Writer, strings.Join(results, " "))
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{
				"query":      query,
				"phase":      m.Phase,
				"total_hits": len(ordered),
				"results":    results,
			})
		},
	}
}

func keywordsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "keywords",
		Usage:     "Show the keywords of a symbol",
		ArgsUsage: "<symbol>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("%w: keywords takes exactly one symbol", apperrors.ErrInvalidInput)
			}
			engine, err := s.engine(c.Context)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.CorpusErr(); err != nil {
				return err
			}

			symbol := c.Args().First()
			keywords, ok := engine.Keywords(symbol)
			if !ok {
				return fmt.Errorf("%w: unknown symbol %q", apperrors.ErrNotFound, symbol)
			}
			return writeJSON(c.App.Writer, map[string]any{"symbol": symbol, "keywords": keywords})
		},
	}
}

func symbolsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "symbols",
		Usage: "List symbols in corpus order",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "offset", Usage: "Index of the first symbol"},
			&cli.IntFlag{Name: "limit", Value: 50, Usage: "Number of symbols"},
		},
		Action: func(c *cli.Context) error {
			engine, err := s.engine(c.Context)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.CorpusErr(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, strings.Join(engine.Chunk(c.Int("offset"), c.Int("limit")), " "))
			return err
		},
	}
}

func rebuildCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Rebuild the index from the corpus and save it",
		Action: func(c *cli.Context) error {
			engine, err := s.engine(c.Context)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.RebuildIndex(c.Context); err != nil {
				return err
			}
			return writeJSON(c.App.Writer, engine.Stats())
		},
	}
}

func mcpCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve symbol_search and symbol_keywords over MCP stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(s.cfg.MCP.DisabledTools); len(unknown) > 0 {
				return fmt.Errorf("%w: unknown tools in mcp.disabledTools: %s", apperrors.ErrInvalidInput, strings.Join(unknown, ", "))
			}
			engine, err := s.engine(c.Context)
			if err != nil {
				return err
			}
			defer engine.Close()
			if err := engine.EnsureIndex(c.Context); err != nil && !errors.Is(err, apperrors.ErrPersistence) {
				return err
			}
			return mcp.Run(engine, s.cfg, Version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
