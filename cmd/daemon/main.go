package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/medialib/internal/artwork"
	"github.com/genricoloni/medialib/internal/config"
	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/fetcher"
	"github.com/genricoloni/medialib/internal/projector"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions is the daemon's dependency graph
var AppOptions = fx.Options(
	// Provide dependencies
	fx.Provide(
		config.NewAppConfig,
		newLogger,
		fx.Annotate(fetcher.NewArtworkFetcher, fx.As(new(domain.Fetcher))),
		fx.Annotate(artwork.NewRenderer, fx.As(new(domain.ArtworkRenderer))),
		projector.NewProjector,
		newLibrary,
		newAuthorizer,
		newDispatcher,
		newIndexer,
		newHTTPServer,
	),

	// Lifecycle hooks
	fx.Invoke(
		registerHooks,
		registerScan,
		registerDBus,
		registerHTTP,
		registerHistory,
	),
)

func main() {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a production zap logger at the configured level
func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg.Log(logger)
			logger.Info("Media library daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return nil
		},
	})
}
