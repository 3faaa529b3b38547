// Package indexer scans a music directory and feeds songs and playlists to
// an index writer.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize = 500
	channelSize      = 100
)

// Options tunes a scan
type Options struct {
	// Workers parsing tags in parallel; 0 means one per CPU
	Workers int
	// BatchSize is the number of songs per write
	BatchSize int
}

// Stats summarizes a scan
type Stats struct {
	Songs     int
	Playlists int
	Skipped   int
	Elapsed   time.Duration
}

// Indexer walks a library directory: discovery, parallel tag parsing and a
// single batching writer
type Indexer struct {
	logger *zap.Logger
	writer domain.IndexWriter
	opts   Options
}

// NewIndexer creates a new indexer writing to w
func NewIndexer(logger *zap.Logger, w domain.IndexWriter, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Indexer{logger: logger, writer: w, opts: opts}
}

// Count returns the number of audio files under root
func Count(root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			n++
		}
		return nil
	})
	return n, err
}

// Scan indexes every audio file and playlist under root. progress, when not
// nil, is called from a single goroutine after each written song.
func (ix *Indexer) Scan(ctx context.Context, root string, progress func(path string)) (Stats, error) {
	start := time.Now()
	root, err := filepath.Abs(root)
	if err != nil {
		return Stats{}, fmt.Errorf("invalid library root: %w", err)
	}
	ix.logger.Info("Library scan started", zap.String("root", root), zap.Int("workers", ix.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	files := make(chan string, channelSize)
	songs := make(chan domain.IndexedSong, channelSize)

	var playlists []string
	var skipped atomic.Int64

	// Discovery
	g.Go(func() error {
		defer close(files)
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				ix.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			switch {
			case playlistExts[ext]:
				playlists = append(playlists, path)
			case audioExts[ext]:
				select {
				case files <- path:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	})

	// Parsers
	var workers sync.WaitGroup
	var sidecars sync.Map
	for i := 0; i < ix.opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for path := range files {
				song, err := parseSong(path)
				if err != nil {
					ix.logger.Debug("Skipping file", zap.String("path", path), zap.Error(err))
					skipped.Add(1)
					continue
				}
				if song.ArtworkData == nil {
					dir := filepath.Dir(path)
					url, ok := sidecars.Load(dir)
					if !ok {
						url, _ = sidecars.LoadOrStore(dir, sidecarArtwork(dir))
					}
					song.ArtworkURL = url.(string)
				}
				select {
				case songs <- song:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(songs)
	}()

	// Writer
	indexed := make(map[string]domain.PersistentID)
	g.Go(func() error {
		batch := make([]domain.IndexedSong, 0, ix.opts.BatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := ix.writer.IndexSongs(gctx, batch); err != nil {
				return fmt.Errorf("failed to write batch: %w", err)
			}
			if progress != nil {
				for _, s := range batch {
					progress(s.Path)
				}
			}
			batch = batch[:0]
			return nil
		}

		for song := range songs {
			indexed[filepath.Clean(song.Path)] = song.ID
			batch = append(batch, song)
			if len(batch) >= ix.opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Songs: len(indexed), Skipped: int(skipped.Load())}
	for _, path := range playlists {
		if err := ix.indexPlaylist(ctx, path, indexed); err != nil {
			ix.logger.Warn("Skipping playlist", zap.String("path", path), zap.Error(err))
			stats.Skipped++
			continue
		}
		stats.Playlists++
	}

	stats.Elapsed = time.Since(start)
	ix.logger.Info("Library scan finished",
		zap.Int("songs", stats.Songs),
		zap.Int("playlists", stats.Playlists),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (ix *Indexer) indexPlaylist(ctx context.Context, path string, indexed map[string]domain.PersistentID) error {
	p, entries, err := parsePlaylist(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if id, ok := indexed[e]; ok {
			p.SongIDs = append(p.SongIDs, id)
		} else {
			ix.logger.Debug("Playlist entry not in library", zap.String("playlist", path), zap.String("entry", e))
		}
	}
	return ix.writer.IndexPlaylist(ctx, p)
}
