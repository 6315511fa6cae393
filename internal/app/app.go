// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	httpAdapter "github.com/jobrunner/sweeper/internal/adapters/http"
	"github.com/jobrunner/sweeper/internal/adapters/mapfile"
	"github.com/jobrunner/sweeper/internal/adapters/metrics"
	"github.com/jobrunner/sweeper/internal/adapters/postgres"
	"github.com/jobrunner/sweeper/internal/adapters/redis"
	"github.com/jobrunner/sweeper/internal/adapters/sqlite"
	"github.com/jobrunner/sweeper/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/sweeper/internal/adapters/tls"
	"github.com/jobrunner/sweeper/internal/adapters/watcher"
	"github.com/jobrunner/sweeper/internal/application"
	"github.com/jobrunner/sweeper/internal/config"
	"github.com/jobrunner/sweeper/internal/ports/output"
)

// metricsNamespace prefixes all exported metric names.
const metricsNamespace = "sweeper"

// App holds all application components.
type App struct {
	Config            *config.Config
	Logger            *slog.Logger
	Storage           output.ObjectStorage
	Repository        output.WorkAreaRepository
	Cache             *redis.Cache
	Registry          *application.MapRegistry
	ConversionService *application.ConversionService
	WorkAreaService   *application.WorkAreaService
	HealthService     *application.HealthService
	SyncService       *application.SyncService
	HTTPServer        *httpAdapter.Server
	TLSServer         *tlsAdapter.Server
	Watcher           *watcher.Watcher
	Metrics           *metrics.Collector
	MetricsServer     *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(metricsNamespace)
		metricsCollector = app.Metrics
		if cfg.Metrics.Port != 0 {
			app.MetricsServer = metrics.NewServer(app.Metrics, cfg.Metrics.Port, cfg.Metrics.Path, logger)
		}
	}

	if err := os.MkdirAll(cfg.Storage.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating map directory: %w", err)
	}

	// Initialize storage adapter
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	// Initialize work area repository
	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Database.Driver, err)
	}
	app.Repository = repo

	// Initialize center cache
	var cache output.CenterCache
	if cfg.Cache.Enabled {
		app.Cache = redis.New(redis.Options{
			Address:  cfg.Cache.Address,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		cache = app.Cache
		if err := app.Cache.Ping(ctx); err != nil {
			logger.Warn("center cache unreachable, continuing without it until it recovers",
				"address", cfg.Cache.Address, "error", err)
		}
	}

	// Initialize map registry
	app.Registry = application.NewMapRegistry(
		mapfile.NewLoader(),
		app.Storage,
		metricsCollector,
		logger,
		cfg.Storage.LocalPath,
	)

	app.ConversionService = application.NewConversionService(
		metricsCollector,
		logger,
		application.ConversionServiceConfig{MaxBatch: cfg.Conversion.MaxBatch},
	)

	app.WorkAreaService = application.NewWorkAreaService(
		app.Repository,
		cache,
		metricsCollector,
		logger,
		cfg.Cache.TTL,
	)

	app.HealthService = application.NewHealthService(app.Registry, app.Repository, cache)

	// Periodic sync only makes sense for remote storage
	if cfg.Storage.IsRemote() && cfg.Storage.SyncInterval > 0 {
		app.SyncService = application.NewSyncService(app.Registry, cfg.Storage.SyncInterval, logger)
	}

	// Initialize HTTP server
	services := httpAdapter.Services{
		Conversion: app.ConversionService,
		WorkAreas:  app.WorkAreaService,
		Registry:   app.Registry,
		Health:     app.HealthService,
		Sync:       app.SyncService,
	}
	if app.Metrics != nil {
		services.Metrics = app.Metrics
		if app.MetricsServer == nil {
			services.MetricsPath = cfg.Metrics.Path
		}
	}
	app.HTTPServer = httpAdapter.NewServer(cfg.Server, services, logger)

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			cfg.Server.Address(),
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			_ = app.Repository.Close()
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for hot-reload
	if !cfg.Storage.IsRemote() {
		w, err := watcher.New(
			watcher.Config{
				Paths: []string{cfg.Storage.LocalPath},
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start loads the maps, starts background components and serves HTTP(S)
// until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	// Load all maps from storage
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load maps", "error", err)
	}

	// Start file watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	var err error
	if a.TLSServer != nil {
		err = a.TLSServer.ListenAndServe(ctx)
	} else {
		err = a.HTTPServer.Start()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	// Shutdown metrics server
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Shutdown HTTP(S) server
	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTPS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	if err := a.Repository.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	return errors.Join(errs...)
}

// handleFileEvent handles file system events for hot-reload.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		// Reload the map
		return a.Registry.LoadMap(ctx, event.Path)

	case watcher.OpDelete:
		if err := a.Registry.UnloadPath(ctx, event.Path); err != nil {
			a.Logger.Warn("failed to unload deleted map", "path", event.Path, "error", err)
		}
		return nil
	}

	return nil
}

// openRepository opens the configured work area store.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (output.WorkAreaRepository, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN)

	case "postgres":
		return postgres.Open(ctx, cfg.DSN, postgres.Options{MaxConns: cfg.MaxConns})

	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
