package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/welltie/internal/controllers/restserver"
	"github.com/chrissnell/welltie/internal/engine"
	"github.com/chrissnell/welltie/internal/loader"
	"github.com/chrissnell/welltie/internal/narrative"
	"github.com/chrissnell/welltie/internal/storage"
	"github.com/chrissnell/welltie/internal/storage/memory"
	"github.com/chrissnell/welltie/internal/storage/postgres"
	"github.com/chrissnell/welltie/internal/storage/sqlite"
	"github.com/chrissnell/welltie/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg     *config.ConfigData
	logger  *zap.SugaredLogger
	backend storage.Backend
	Engine  *engine.Engine
}

// Inputs names the CSV files holding the primary logs. Empty paths leave the
// corresponding series empty.
type Inputs struct {
	Reference  string
	Comparison string
}

// New opens the session backend and builds the engine
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) (*App, error) {
	backend, err := OpenBackend(cfg.Session, logger)
	if err != nil {
		return nil, err
	}

	deps := engine.Deps{
		Sessions:   backend,
		SessionKey: cfg.Session.Key,
		Archive:    backend,
	}
	if cfg.Narrative.Endpoint != "" {
		deps.Narrator = narrative.NewHTTPGenerator(cfg.Narrative.Endpoint, cfg.Narrative.APIKey,
			cfg.Narrative.Timeout, logger.Named("narrative"))
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		Engine:  engine.New(EngineConfig(cfg), deps, logger),
	}, nil
}

// OpenBackend opens the configured session store
func OpenBackend(sc config.SessionData, logger *zap.SugaredLogger) (storage.Backend, error) {
	switch sc.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		s, err := sqlite.New(sc.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite session store: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.New(sc.ConnectionString, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("opening postgres session store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", sc.Backend)
	}
}

// EngineConfig maps the configuration file onto engine settings
func EngineConfig(cfg *config.ConfigData) engine.Config {
	ec := engine.DefaultConfig()
	ec.OffsetLimit = cfg.Engine.OffsetLimit
	ec.Tolerance = cfg.Engine.MatchTolerance
	ec.SettleInterval = cfg.Engine.SettleInterval
	ec.Search.Resolution = cfg.Engine.SearchResolution
	ec.Search.Workers = cfg.Engine.SearchWorkers
	ec.Scan.DetectVoids = cfg.Anomaly.DetectVoids
	ec.Scan.MinVoidRows = cfg.Anomaly.MinVoidRows
	ec.Audit.K = cfg.Anomaly.VarianceK
	ec.Audit.Kernel = cfg.Anomaly.MedianKernel
	return ec
}

// Load reads the primary logs into the series store
func (a *App) Load(in Inputs) error {
	if in.Reference != "" {
		samples, err := loader.ReadCSVFile(in.Reference)
		if err != nil {
			return fmt.Errorf("loading reference log: %w", err)
		}
		a.Engine.Store().SetReference(in.Reference, "", samples)
	}
	if in.Comparison != "" {
		samples, err := loader.ReadCSVFile(in.Comparison)
		if err != nil {
			return fmt.Errorf("loading comparison log: %w", err)
		}
		a.Engine.Store().SetComparison(in.Comparison, "", samples)
	}
	return nil
}

// Close releases the engine and the session backend
func (a *App) Close() error {
	a.Engine.Close()
	return a.backend.Close()
}

// Serve runs the REST server and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl, err := restserver.NewController(ctx, &wg, restserver.Options{
		Engine:      a.Engine,
		Backend:     a.backend,
		BackendName: a.cfg.Session.Backend,
		REST:        a.cfg.REST,
		Anomaly:     a.cfg.Anomaly,
	}, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
