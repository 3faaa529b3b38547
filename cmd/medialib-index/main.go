// Command medialib-index scans a music directory into the media library store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/medialib/internal/config"
	"github.com/genricoloni/medialib/internal/indexer"
	"github.com/genricoloni/medialib/internal/store"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "medialib-index:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML configuration file (overrides MEDIALIB_CONFIG)")
	libraryDir := flag.String("library", "", "music directory to scan (overrides library_dir)")
	backend := flag.String("backend", "", "store backend: sqlite or bleve (overrides backend)")
	dbPath := flag.String("db", "", "store location (overrides database_path)")
	workers := flag.Int("workers", 0, "tag parsing workers; 0 means one per CPU")
	quiet := flag.Bool("quiet", false, "disable the progress bar")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("MEDIALIB_CONFIG", *configPath)
	}
	cfg, err := config.NewAppConfig()
	if err != nil {
		return err
	}
	if *libraryDir != "" {
		cfg.LibraryDir = *libraryDir
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if cfg.Backend == store.Memory {
		return fmt.Errorf("the memory backend cannot be indexed from the command line")
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zc.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lib, err := store.Open(ctx, logger, cfg.Backend, cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer lib.Close()

	var progress func(string)
	var bar *progressbar.ProgressBar
	if !*quiet {
		total, err := indexer.Count(cfg.LibraryDir)
		if err != nil {
			return err
		}
		bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Indexing songs..."),
		)
		progress = func(string) { _ = bar.Add(1) }
	}

	ix := indexer.NewIndexer(logger, lib, indexer.Options{Workers: *workers})
	stats, err := ix.Scan(ctx, cfg.LibraryDir, progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d songs and %d playlists from %s in %s (%d skipped)\n",
		stats.Songs, stats.Playlists, cfg.LibraryDir, stats.Elapsed.Round(time.Millisecond), stats.Skipped)
	return nil
}
