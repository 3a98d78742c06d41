package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myeasy-ai/fitquest/internal/api"
	"github.com/myeasy-ai/fitquest/internal/app/autosave"
	"github.com/myeasy-ai/fitquest/internal/app/engagement"
	"github.com/myeasy-ai/fitquest/internal/health"
	"github.com/myeasy-ai/fitquest/internal/infra/sqlite"
	"github.com/myeasy-ai/fitquest/internal/logger"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Daemon is the fitquest runtime. It wires together all services.
type Daemon struct {
	Config   Config
	Log      *slog.Logger
	DB       *sqlite.DB
	Sessions *api.Registry
	Server   *api.Server
	Health   *health.Checker

	engine   engagement.Config
	flushLog func()
	cancel   context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := engagement.ValidateCatalog(); err != nil {
		return nil, err
	}

	log, flushLog, err := logger.Init(logger.Options{
		Format:      cfg.Logging.Format,
		Level:       cfg.Logging.Level,
		Output:      os.Stderr,
		SentryDSN:   cfg.Telemetry.SentryDSN,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Storage.Driver, cfg.DSN(), log)
	if err != nil {
		flushLog()
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{
		Config:   cfg,
		Log:      log,
		DB:       db,
		flushLog: flushLog,
		engine: engagement.Config{
			Location:           loc,
			WeeklyTrainingDays: cfg.Engine.WeeklyTrainingDays,
			SaveDebounce:       parseDuration(cfg.Engine.SaveDebounce, autosave.DefaultDebounce),
			Logger:             log,
			Celebrations:       cfg.Engine.Celebrations,
		},
	}

	d.Sessions, err = api.NewRegistry(cfg.API.CacheSize, d.NewService, log)
	if err != nil {
		d.Close()
		return nil, err
	}

	dataDir := ""
	if cfg.Storage.Driver == sqlite.DriverSQLite && cfg.Storage.DSN == "" {
		dataDir = cfg.Storage.Dir
	}
	d.Health = health.NewChecker(db, dataDir, log)
	d.Health.SetInterval(parseDuration(cfg.Telemetry.HealthInterval, health.DefaultInterval))

	d.Server = api.NewServer(d.Sessions, log)
	d.Server.SetHealth(d.Health)
	d.Server.SetRequestTimeout(parseDuration(cfg.API.RequestTimeout, api.DefaultRequestTimeout))
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// NewService builds an unloaded engagement service for userID.
func (d *Daemon) NewService(userID string) *engagement.Service {
	return engagement.NewService(userID, d.DB, d.engine)
}

// Session returns the cached, loaded service for userID.
func (d *Daemon) Session(ctx context.Context, userID string) (*engagement.Service, error) {
	return d.Sessions.Get(ctx, userID)
}

// Serve starts the HTTP server and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	d.cancel = cancel
	defer cancel()

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		d.Log.Info("fitquest serving", "addr", "http://"+addr,
			"driver", d.DB.Driver(), "metrics", d.Config.Telemetry.Prometheus)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	case <-ctx.Done():
	}

	d.Log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		d.Log.Warn("http shutdown", "error", err)
	}
	return nil
}

// Close flushes every session and shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Sessions != nil {
		d.Sessions.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.flushLog != nil {
		d.flushLog()
	}
}
