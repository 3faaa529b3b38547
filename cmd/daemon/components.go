package main

import (
	"context"
	"errors"

	"github.com/genricoloni/medialib/internal/auth"
	"github.com/genricoloni/medialib/internal/config"
	"github.com/genricoloni/medialib/internal/dispatcher"
	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/history"
	"github.com/genricoloni/medialib/internal/indexer"
	"github.com/genricoloni/medialib/internal/monitor"
	"github.com/genricoloni/medialib/internal/projector"
	"github.com/genricoloni/medialib/internal/store"
	"github.com/genricoloni/medialib/internal/transport/dbusapi"
	"github.com/genricoloni/medialib/internal/transport/httpapi"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var openLibrary = store.Open

// newLibrary opens the configured backend. A backend this build cannot
// provide yields a nil library, leaving the dispatcher unavailable.
func newLibrary(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig, f domain.Fetcher) (store.Library, error) {
	lib, err := openLibrary(context.Background(), logger, cfg.Backend, cfg.DatabasePath, f)
	if errors.Is(err, domain.ErrCapabilityUnavailable) {
		logger.Warn("Media library unavailable", zap.String("backend", cfg.Backend), zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return lib.Close()
		},
	})
	return lib, nil
}

func newAuthorizer(logger *zap.Logger, cfg *config.AppConfig) (domain.Authorizer, error) {
	return auth.New(logger, cfg.Authorizer, cfg.PolkitAction)
}

func newDispatcher(
	logger *zap.Logger,
	lib store.Library,
	authorizer domain.Authorizer,
	proj *projector.Projector,
	cfg *config.AppConfig,
) *dispatcher.Dispatcher {
	var st domain.Store
	if lib != nil {
		st = lib
	}
	return dispatcher.NewDispatcher(logger, st, authorizer, proj, dispatcher.Options{
		RequireAuthorization: cfg.RequireAuthorization,
	})
}

// newIndexer returns nil when there is no library to index into
func newIndexer(logger *zap.Logger, lib store.Library) *indexer.Indexer {
	if lib == nil {
		return nil
	}
	return indexer.NewIndexer(logger, lib, indexer.Options{})
}

// newHTTPServer returns nil when http_addr is empty
func newHTTPServer(logger *zap.Logger, cfg *config.AppConfig, d *dispatcher.Dispatcher) *httpapi.Server {
	if cfg.HTTPAddr == "" {
		return nil
	}
	return httpapi.NewServer(logger, d, cfg.HTTPAddr)
}

// registerScan indexes the library in the background when scan_on_start is set
func registerScan(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig, ix *indexer.Indexer) {
	if !cfg.ScanOnStart || ix == nil {
		return
	}

	scanCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				if _, err := ix.Scan(scanCtx, cfg.LibraryDir, nil); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Library scan failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// registerDBus serves the dispatcher on the session bus unless bus_name is empty
func registerDBus(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig, d *dispatcher.Dispatcher) {
	if cfg.BusName == "" {
		logger.Info("D-Bus transport disabled")
		return
	}

	var svc *dbusapi.Service
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			conn, err := dbusapi.ConnectSessionBus()
			if err != nil {
				return err
			}
			svc = dbusapi.NewService(logger, conn, d, cfg.BusName, cfg.ObjectPath)
			if err := svc.Start(ctx); err != nil {
				return multierr.Append(err, conn.Close())
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc == nil {
				return nil
			}
			return svc.Stop(ctx)
		},
	})
}

func registerHTTP(lc fx.Lifecycle, logger *zap.Logger, srv *httpapi.Server) {
	if srv == nil {
		logger.Info("HTTP transport disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Stop,
	})
}

// registerHistory records plays reported over MPRIS. A missing session bus
// only disables history.
func registerHistory(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig, lib store.Library) {
	if !cfg.RecordHistory || lib == nil {
		return
	}

	mon := monitor.NewMprisMonitor(logger, cfg.HistoryPlayers...)
	rec := history.NewRecorder(logger, mon, lib)
	monCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rec.Start(ctx); err != nil {
				return err
			}
			go func() {
				if err := mon.Start(monCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("Play history disabled", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return multierr.Combine(mon.Stop(ctx), rec.Stop(ctx))
		},
	})
}
