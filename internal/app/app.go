// Package app provides application-level wiring and dependency injection
// for the log manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"log-manager/internal/api"
	"log-manager/internal/config"
	"log-manager/internal/domain"
	"log-manager/internal/engine"
	"log-manager/internal/filter"
	"log-manager/internal/metrics"
	"log-manager/internal/middleware"
	"log-manager/internal/partition"
	"log-manager/internal/service/query"
	"log-manager/internal/storage"
)

// Deps holds the external dependencies main() may provide. Nil Store and
// Engine are built from Cfg; tests inject fakes instead.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  domain.ObjectStore
	Engine domain.QueryEngine
}

// App holds the fully-wired application.
type App struct {
	Cfg    *config.Config
	Logger *slog.Logger

	// Queries serves interactive filter queries.
	Queries     *query.QueryService
	Interactive *query.Manager
	// Partitions runs ADD PARTITION statements for the scanner. It is kept
	// apart from Interactive so registration load never shows up in the
	// query API.
	Partitions *query.Manager

	Scanner   *partition.Scanner   // nil when no archive bucket is configured
	Scheduler *partition.Scheduler // nil when scanning is disabled

	Registry *prometheus.Registry
}

// New wires storage, the query engine, both execution managers and the
// partition pipeline from deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === Query engine ===
	eng := deps.Engine
	if eng == nil {
		athenaEng, err := engine.NewAthenaEngine(ctx, engine.AthenaConfig{
			Region: cfg.S3Region,
			KeyID:  cfg.S3KeyID,
			Secret: cfg.S3Secret,
		})
		if err != nil {
			return nil, fmt.Errorf("query engine: %w", err)
		}
		eng = athenaEng
	}

	managerCfg := query.ManagerConfig{
		OutputLocation: cfg.OutputLocation(),
		Database:       cfg.Database,
		WorkGroup:      cfg.AthenaWorkGroup,
		PollInterval:   cfg.PollInterval,
		Retention:      cfg.Retention,
	}
	interactive := query.NewManager(eng, managerCfg, logger.With("component", "query-manager"))
	interactive.SetMetrics(metrics.NewQueryMetrics(reg, "interactive"))
	partitions := query.NewManager(eng, managerCfg, logger.With("component", "partition-manager"))
	partitions.SetMetrics(metrics.NewQueryMetrics(reg, "partitions"))

	querySvc := query.NewQueryService(interactive, filter.Options{
		Database: cfg.Database,
		Table:    cfg.DefaultTable,
		Timezone: cfg.DefaultTimezone,
	}, logger.With("component", "query-service"))

	a := &App{
		Cfg:         cfg,
		Logger:      logger,
		Queries:     querySvc,
		Interactive: interactive,
		Partitions:  partitions,
		Registry:    reg,
	}

	// === Archive storage + partition pipeline ===
	store := deps.Store
	if store == nil && cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
			KeyID:        cfg.S3KeyID,
			Secret:       cfg.S3Secret,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("archive storage: %w", err)
		}
		store = s3Store
	}
	if store == nil {
		logger.Warn("S3_BUCKET not set; partition scanning disabled")
		return a, nil
	}

	registrar, err := partition.NewRegistrar(partitions, partition.RegistrarConfig{
		Table:  cfg.PartitionTable,
		Bucket: cfg.S3Bucket,
		Prefix: cfg.ArchivePrefix,
	}, logger.With("component", "registrar"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("partition registrar: %w", err)
	}
	a.Scanner = partition.NewScanner(store, registrar, partition.ScannerConfig{
		Prefix:      cfg.ArchivePrefix,
		Concurrency: cfg.ScanConcurrency,
		MaxKeys:     cfg.ScanMaxKeys,
	}, logger.With("component", "scanner"))
	a.Scanner.SetMetrics(metrics.NewScanMetrics(reg))

	if cfg.ScanEnabled {
		a.Scheduler, err = partition.NewScheduler(a.Scanner, cfg.ScanHourlySchedule, cfg.ScanDailySchedule,
			logger.With("component", "scheduler"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("partition scheduler: %w", err)
		}
	}
	return a, nil
}

// Router builds the HTTP handler. ctx bounds the rate limiter's sweeper.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, api.RouterConfig{
		Handler: api.NewHandler(a.Queries, a.Logger.With("component", "api")),
		Logger:  a.Logger,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.Cfg.RateLimitRPS,
			Burst:             a.Cfg.RateLimitBurst,
		},
		AllowedOrigins: a.Cfg.CORSAllowedOrigins,
		Gatherer:       a.Registry,
	})
}

// WaitForSubmissions blocks until every partition statement in ids is
// terminal and returns the ones that did not succeed.
func (a *App) WaitForSubmissions(ctx context.Context, ids []string) ([]domain.QueryExecution, error) {
	var failed []domain.QueryExecution
	for _, id := range ids {
		exec, err := a.Partitions.Wait(ctx, id)
		if err != nil {
			return failed, fmt.Errorf("wait for %s: %w", id, err)
		}
		if exec.State != domain.ExecutionSucceeded {
			failed = append(failed, exec)
		}
	}
	return failed, nil
}

// Close stops every background poll loop.
func (a *App) Close() {
	a.Interactive.Close()
	a.Partitions.Close()
}
