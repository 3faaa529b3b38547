//go:build cgo

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/genricoloni/medialib/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Open opens or creates the database at path and migrates its schema
func Open(ctx context.Context, logger *zap.Logger, path string, fetcher domain.Fetcher) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := NewWithDB(logger, db, fetcher)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}
