// Package store opens the configured media store backend.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/store/fulltext"
	"github.com/genricoloni/medialib/internal/store/memory"
	"github.com/genricoloni/medialib/internal/store/sqlite"
	"go.uber.org/zap"
)

// Backend names
const (
	SQLite   = "sqlite"
	Fulltext = "bleve"
	Memory   = "memory"
)

// Library is a store that can be queried, populated by the indexer and
// updated by play history
type Library interface {
	domain.Store
	domain.IndexWriter
	domain.HistoryWriter
}

var (
	_ Library = (*sqlite.Store)(nil)
	_ Library = (*fulltext.Store)(nil)
	_ Library = (*memory.Store)(nil)
)

// Open opens the backend at path, creating its parent directory when needed.
// The memory backend ignores path.
func Open(ctx context.Context, logger *zap.Logger, backend, path string, fetcher domain.Fetcher) (Library, error) {
	if backend != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	switch backend {
	case SQLite:
		s, err := sqlite.Open(ctx, logger, path, fetcher)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Fulltext:
		s, err := fulltext.Open(logger, path, fetcher)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Memory:
		logger.Info("Memory store opened")
		return memory.New(fetcher), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
