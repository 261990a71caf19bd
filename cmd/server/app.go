package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/hearthd/internal/api"
	"github.com/phrazzld/hearthd/internal/config"
	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/platform/metrics"
	"github.com/phrazzld/hearthd/internal/platform/postgres"
	"github.com/phrazzld/hearthd/internal/platform/resources"
	"github.com/phrazzld/hearthd/internal/scheduler"
	"github.com/phrazzld/hearthd/internal/store"
	"github.com/phrazzld/hearthd/internal/store/memstore"
	"github.com/phrazzld/hearthd/internal/tasks"
)

// maintenanceInterval is how often the app submits a background index
// optimization task.
const maintenanceInterval = 10 * time.Minute

// application holds the wired service graph.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     store.CalendarStore
	index     *index.EventIndex
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
}

// newApplication wires the service from configuration. With no database
// URL configured the in-memory calendar store is used; events then live
// only as long as the process.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if cfg.Database.URL != "" {
		db, err := openDatabase(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		app.db = db
		app.store = postgres.NewPostgresCalendarStore(db)
		logger.Info("using postgres calendar store")
	} else {
		app.store = memstore.NewCalendarStore()
		logger.Warn("no database configured, using in-memory calendar store")
	}

	app.index = index.New(index.Config{
		CacheCapacity:          cfg.Index.CacheCapacity,
		CacheTTL:               cfg.Index.CacheTTL,
		FragmentationThreshold: cfg.Index.FragmentationThreshold,
	}, logger)

	provider := resources.NewSystemProvider(time.Second)
	emitter := scheduler.NewSignalEmitter(logger)
	app.metrics = metrics.NewCollector()
	emitter.Register(app.metrics)

	registry := scheduler.NewHandlerRegistry()
	if err := tasks.RegisterAll(registry, tasks.Deps{
		Store:     app.store,
		Index:     app.index,
		Resources: provider,
		Logger:    logger,
	}); err != nil {
		app.close()
		return nil, err
	}

	app.scheduler = scheduler.New(scheduler.Config{
		MaxQueueSize:       cfg.Scheduler.MaxQueueSize,
		MaxConcurrentTasks: cfg.Scheduler.MaxConcurrentTasks,
		ConcurrencyCeiling: cfg.Scheduler.ConcurrencyCeiling,
		DrainInterval:      cfg.Scheduler.DrainInterval,
		OptimizeInterval:   cfg.Scheduler.OptimizeInterval,
		RetryBaseDelay:     cfg.Scheduler.RetryBaseDelay,
		RetryMaxDelay:      cfg.Scheduler.RetryMaxDelay,
		Thresholds: scheduler.Thresholds{
			MemoryBytes:        cfg.Scheduler.MemoryThresholdMB << 20,
			CPUPercent:         cfg.Scheduler.CPUThresholdPercent,
			NetworkConnections: cfg.Scheduler.MaxNetworkConnections,
		},
		DeferralWindow: cfg.Scheduler.DeferralWindow,
	}, registry, provider, emitter, logger)

	return app, nil
}

// warmIndex builds the event index from the calendar store at startup.
func (app *application) warmIndex(ctx context.Context) error {
	events, err := app.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events for index warmup: %w", err)
	}
	app.index.Rebuild(events)
	app.logger.Info("event index warmed", "events", len(events))
	return nil
}

// router builds the HTTP handler over the wired services.
func (app *application) router() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Store:     app.store,
		Index:     app.index,
		Scheduler: app.scheduler,
		Metrics:   app.metrics,
		Logger:    app.logger,
	})
}

// maintenanceLoop periodically submits an index optimization task and
// refreshes the metric gauges. Runs until the context is cancelled.
func (app *application) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.scheduler.Submit(scheduler.TaskSpec{
				Type:       scheduler.TaskTypeIndexOptimization,
				Priority:   scheduler.PriorityBackground,
				MaxRetries: 1,
			}); err != nil {
				app.logger.Warn("failed to submit maintenance task", "error", err)
			}
			app.metrics.ObserveQueue(app.scheduler.GetQueueStatus())
			app.metrics.ObserveIndex(app.index.Stats())
		}
	}
}

// close releases the application's resources.
func (app *application) close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
