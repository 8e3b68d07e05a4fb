package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

// FileStore keeps the index as a single JSON document, or YAML when the path
// ends in .yaml or .yml. Keys are sorted so equal indexes produce equal files.
type FileStore struct {
	path   string
	yaml   bool
	create func(path string) (indexFile, error)
	logger *slog.Logger
}

// indexFile is the part of *os.File that Save writes through.
type indexFile interface {
	io.Writer
	Sync() error
	Close() error
}

func createFile(path string) (indexFile, error) {
	return os.Create(path)
}

func NewFileStore(path string) *FileStore {
	ext := strings.ToLower(filepath.Ext(path))
	return &FileStore{
		path:   path,
		yaml:   ext == ".yaml" || ext == ".yml",
		create: createFile,
		logger: slog.Default().With("component", "file-store"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*index.InvertedIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var m map[string][]string
	if s.yaml {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", apperrors.ErrIndexMalformed, s.path, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s does not hold a mapping", apperrors.ErrIndexMalformed, s.path)
	}
	ix, err := index.FromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.logger.Debug("index loaded", "path", s.path, "terms", ix.Len())
	return ix, nil
}

// Save atomically replaces the index file. It writes a .tmp file first and
// renames on success.
func (s *FileStore) Save(ctx context.Context, ix *index.InvertedIndex) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	data, err := s.encode(ix.Map())
	if err != nil {
		return fmt.Errorf("%w: encoding index: %v", apperrors.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating index directory: %v", apperrors.ErrPersistence, err)
	}
	tmpPath := s.path + ".tmp"
	f, err := s.create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: creating temp index file: %v", apperrors.ErrPersistence, err)
	}
	fail := func(step string, err error) error {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", apperrors.ErrPersistence, step, err)
	}

	if _, err := f.Write(data); err != nil {
		return fail("writing index", err)
	}
	if err := f.Sync(); err != nil {
		return fail("syncing index file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing index file: %v", apperrors.ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming index file: %v", apperrors.ErrPersistence, err)
	}
	s.logger.Info("index saved", "path", s.path, "terms", ix.Len(), "bytes", len(data))
	return nil
}

func (s *FileStore) encode(m map[string][]string) ([]byte, error) {
	if s.yaml {
		return yaml.Marshal(m)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *FileStore) Close() error {
	return nil
}
