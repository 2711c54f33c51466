package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-portal-shell/app/db"
	appMiddleware "github.com/FACorreiaa/go-portal-shell/app/middleware"
	"github.com/FACorreiaa/go-portal-shell/app/observability/metrics"
	"github.com/FACorreiaa/go-portal-shell/config"
	"github.com/FACorreiaa/go-portal-shell/internal/guard"
	"github.com/FACorreiaa/go-portal-shell/internal/modules"
	"github.com/FACorreiaa/go-portal-shell/internal/preference"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
	"github.com/FACorreiaa/go-portal-shell/internal/shell"
	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Storage   storage.Storage
	Writer    *storage.Writer
	Session   *session.Store
	Theme     *preference.ThemeStore
	Language  *preference.LanguageStore
	Hints     *appMiddleware.Hints
	Guard     *guard.Guard
	Table     *router.Table
	Registry  *router.Registry
	Navigator *router.Navigator
	Router    chi.Router

	closers []func() error
}

type options struct {
	metrics        *metrics.AppMetrics
	metricsHandler http.Handler
	storage        storage.Storage
	moduleOpts     *modules.Options
}

// Option customizes NewContainer.
type Option func(*options)

// WithMetrics records router and storage telemetry on m and serves h at /metrics.
func WithMetrics(m *metrics.AppMetrics, h http.Handler) Option {
	return func(o *options) {
		o.metrics = m
		o.metricsHandler = h
	}
}

// WithStorage bypasses the configured storage driver.
func WithStorage(s storage.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithModuleOptions overrides the module loader settings from config.
func WithModuleOptions(mo modules.Options) Option {
	return func(o *options) { o.moduleOpts = &mo }
}

// NewContainer opens storage, restores the persisted stores and wires the
// router. Nothing is loaded beyond the persisted state.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container{Config: cfg, Logger: logger}

	store := o.storage
	if store == nil {
		var err error
		if store, err = c.openStorage(ctx); err != nil {
			return nil, err
		}
	}
	c.Storage = store

	var writerOpts []storage.WriterOption
	var navOpts []router.NavigatorOption
	var regOpts []router.RegistryOption
	if o.metrics != nil {
		writerOpts = append(writerOpts, storage.WithErrorHook(o.metrics.StorageWriteFailed))
		navOpts = append(navOpts, router.WithNavigationRecorder(o.metrics))
		regOpts = append(regOpts, router.WithRecorder(o.metrics))
	}
	c.Writer = storage.NewWriter(store, logger, writerOpts...)
	c.closers = append(c.closers, c.Writer.Close)

	c.Hints = &appMiddleware.Hints{}
	c.Session = session.New(c.Writer, logger)
	c.Theme = preference.NewThemeStore(c.Writer, logger, c.Hints.ColorScheme)
	c.Language = preference.NewLanguageStore(c.Writer, logger)
	c.Session.Initialize(ctx)
	c.Theme.Initialize(ctx)
	c.Language.Initialize(ctx)

	c.Guard = guard.New(c.Session, logger)
	c.Table = router.DefaultTable()
	c.Registry = router.NewRegistry(logger, regOpts...)
	c.closers = append(c.closers, func() error { c.Registry.Close(); return nil })

	moduleOpts := modules.Options{
		RemoteBaseURL: cfg.Modules.RemoteBaseURL,
		ContentDir:    cfg.Modules.ContentDir,
	}
	if o.moduleOpts != nil {
		moduleOpts = *o.moduleOpts
	}
	if err := modules.Register(c.Registry, c.Table.Modules(), moduleOpts); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("register modules: %w", err)
	}
	c.Navigator = router.NewNavigator(c.Table, c.Registry, c.Session, c.Guard, logger, navOpts...)

	pages := shell.NewPageHandler(c.Navigator, c.Registry, c.Session, c.Theme, c.Language,
		cfg.Modules.PlaceholderWait, logger)
	c.Router = shell.SetupRouter(&shell.Config{
		Pages:       pages,
		Session:     shell.NewSessionHandler(c.Session, logger),
		Theme:       shell.NewPreferenceHandler(preference.ThemeKey, c.Theme),
		Language:    shell.NewPreferenceHandler(preference.LanguageKey, c.Language),
		Modules:     shell.NewModulesHandler(c.Registry),
		Guard:       c.Guard,
		Hints:       c.Hints,
		Metrics:     o.metricsHandler,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Timeout:     cfg.Server.RequestTimeout,
		Logger:      logger,
	})
	return c, nil
}

// openStorage opens the configured driver. A durable backend that cannot be
// opened degrades to storage.Unavailable: the shell keeps its state in memory.
func (c *Container) openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := c.Config.Storage
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), nil
	case config.DriverNone:
		return storage.Unavailable{}, nil
	case config.DriverSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			c.Logger.ErrorContext(ctx, "SQLite storage unavailable, state will not persist",
				slog.String("path", cfg.SQLite.Path), slog.Any("error", err))
			return storage.Unavailable{}, nil
		}
		c.closers = append(c.closers, s.Close)
		return s, nil
	case config.DriverPostgres:
		pool, err := c.openPostgres(ctx, cfg.Postgres)
		if err != nil {
			c.Logger.ErrorContext(ctx, "Postgres storage unavailable, state will not persist", slog.Any("error", err))
			return storage.Unavailable{}, nil
		}
		c.Pool = pool
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		return storage.NewPostgres(pool, cfg.Postgres.Profile), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func (c *Container) openPostgres(ctx context.Context, pg config.Postgres) (*pgxpool.Pool, error) {
	dbConfig, err := database.NewDatabaseConfig(pg, c.Logger)
	if err != nil {
		return nil, err
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, c.Logger); err != nil {
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, c.Logger)
	if err != nil {
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, c.Logger) {
		pool.Close()
		return nil, errors.New("database not ready after waiting")
	}
	return pool, nil
}

// Preload warms the configured modules.
func (c *Container) Preload(ctx context.Context) error {
	if len(c.Config.Modules.Preload) == 0 {
		return nil
	}
	return c.Registry.Preload(ctx, c.Config.Modules.Preload...)
}

// Close flushes pending writes and releases storage, in reverse order of
// acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Session != nil {
		if err := c.Session.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
