// Package main provides the entry point for the observatory Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"github.com/ocabr/observatory/internal/artifact"
	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/database"
	"github.com/ocabr/observatory/internal/harvest"
	"github.com/ocabr/observatory/internal/harvest/crossref"
	"github.com/ocabr/observatory/internal/harvest/openalex"
	"github.com/ocabr/observatory/internal/harvest/sucupira"
	"github.com/ocabr/observatory/internal/harvest/unpaywall"
	"github.com/ocabr/observatory/internal/indicator"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/outbox"
	"github.com/ocabr/observatory/internal/promote"
	"github.com/ocabr/observatory/internal/reconcile"
	"github.com/ocabr/observatory/internal/repository"
	"github.com/ocabr/observatory/internal/search"
	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
	"github.com/ocabr/observatory/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("observatory worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Create repositories.
	rawRepo := repository.NewPgRawRepository(db)
	runRepo := repository.NewPgHarvestRunRepository(db)
	articleRepo := repository.NewPgArticleRepository(db)
	journalRepo := repository.NewPgJournalRepository(db)
	contributorRepo := repository.NewPgContributorRepository(db)
	institutionRepo := repository.NewPgInstitutionRepository(db)
	geographyRepo := repository.NewPgGeographyRepository(db)
	lookupRepo := repository.NewPgLookupRepository(db)
	directoryRepo := repository.NewPgDirectoryRepository(db)

	// Create metrics.
	metrics := observability.NewMetrics("observatory")

	// Connect to the document store.
	searchClient, err := search.NewClient(cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}
	indexSync := search.NewIndexSync(searchClient, cfg.Search, logger, metrics)
	if err := indexSync.EnsureIndices(ctx); err != nil {
		logger.Warn().Err(err).Msg("index mapping setup failed, continuing")
	}

	// Create the mutation event publisher and the index sync listener.
	var publisher *outbox.Publisher
	if cfg.Kafka.Enabled {
		publisher = outbox.NewPublisher(cfg.Kafka, logger, metrics)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close event publisher")
			}
		}()

		listener := outbox.NewListener(cfg.Kafka, indexSync, directoryRepo, logger, metrics)
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close event listener")
			}
		}()

		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("index sync listener error")
			}
		}()
		logger.Info().
			Str("topic", cfg.Kafka.Topic).
			Str("group_id", cfg.Kafka.ConsumerGroup).
			Msg("index sync listener started")
	}

	// Create domain services.
	runner := harvest.NewRunner(rawRepo, runRepo, logger, metrics)
	sources := buildHarvestSources(cfg, logger, metrics)

	promoter := promote.NewPromoter(
		rawRepo,
		articleRepo,
		journalRepo,
		contributorRepo,
		institutionRepo,
		lookupRepo,
		logger,
		metrics,
	)
	if publisher != nil {
		promoter = promoter.WithEvents(publisher)
	}

	reconciler := reconcile.New(contributorRepo, institutionRepo, geographyRepo, logger, metrics)

	artifactStore, err := artifact.NewStore(ctx, cfg.Artifacts, logger)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}
	generator := indicator.NewGenerator(
		directoryRepo,
		articleRepo,
		institutionRepo,
		geographyRepo,
		lookupRepo,
		indicator.NewTxVersionStore(db),
		artifactStore,
		cfg.Indicators,
		logger,
		metrics,
	)

	// Create Temporal client.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager and register workflows and activities.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager, err := temporal.NewWorkerManager(temporalClient, workerConfig)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	workflows.Register(manager)

	manager.RegisterActivity(activities.NewHarvestActivities(runner, sources))
	manager.RegisterActivity(activities.NewPromoteActivities(promoter))
	manager.RegisterActivity(activities.NewReconcileActivities(reconciler))
	manager.RegisterActivity(activities.NewIndicatorActivities(generator))
	manager.RegisterActivity(activities.NewIndexActivities(directoryRepo, indexSync))

	// Register indicator schedules from the configured actions. The
	// enumeration is idempotent, so a restart replaces its own schedules.
	actions, _, err := lookupRepo.ListActions(ctx)
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	scheduler := indicator.NewScheduler(
		temporalClient,
		cfg.Temporal.TaskQueue,
		cfg.Indicators.ScheduleInterval,
		logger,
	)
	registered, err := scheduler.ScheduleTasks(ctx, actions, nil, defaultGroupingSets())
	if err != nil {
		return fmt.Errorf("register indicator schedules: %w", err)
	}
	logger.Info().Int("schedules", registered).Msg("indicator schedules ready")

	// Expose metrics; the worker has no other HTTP surface.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	err = manager.Start(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("metrics server shutdown error")
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}

// buildHarvestSources constructs the enabled upstream sources keyed by
// the names the harvest workflow addresses them with.
func buildHarvestSources(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) map[string]harvest.Source {
	sources := make(map[string]harvest.Source)

	if cfg.Harvest.OpenAlex.Enabled {
		oaCfg := cfg.Harvest.OpenAlex
		oaClient := openalex.New(openalex.Config{
			BaseURL:   oaCfg.BaseURL,
			MailTo:    oaCfg.MailTo,
			PerPage:   oaCfg.PerPage,
			Timeout:   oaCfg.Timeout,
			RateLimit: oaCfg.RateLimit,
		}, logger, metrics)
		sources["openalex"] = openalex.NewWorksSource(oaClient, "")
		sources["openalex_institutions"] = openalex.NewInstitutionsSource(oaClient, "")
		sources["openalex_sources"] = openalex.NewVenuesSource(oaClient, "")
		logger.Info().Msg("registered harvest source: OpenAlex")
	}

	if cfg.Harvest.Crossref.Enabled {
		crCfg := cfg.Harvest.Crossref
		crClient := crossref.New(crossref.Config{
			BaseURL:   crCfg.BaseURL,
			MailTo:    crCfg.MailTo,
			Rows:      crCfg.PerPage,
			Timeout:   crCfg.Timeout,
			RateLimit: crCfg.RateLimit,
		}, logger, metrics)
		sources["crossref"] = crossref.NewWorksSource(crClient, "")
		logger.Info().Msg("registered harvest source: Crossref")
	}

	if cfg.Harvest.Unpaywall.Enabled {
		// BaseURL carries the snapshot path for the dump reader.
		path := cfg.Harvest.Unpaywall.BaseURL
		open := func() (io.ReadCloser, error) { return os.Open(path) }
		sources["unpaywall"] = unpaywall.NewSnapshotSource(open, cfg.Harvest.Unpaywall.PerPage, logger)
		logger.Info().Str("path", path).Msg("registered harvest source: Unpaywall snapshot")
	}

	if cfg.Harvest.Sucupira.Enabled {
		suCfg := cfg.Harvest.Sucupira
		sources["sucupira"] = sucupira.NewFileSource(
			suCfg.ProductionPath,
			suCfg.DetailsPath,
			cfg.Harvest.LoopSize,
			logger,
		)
		logger.Info().Msg("registered harvest source: Sucupira")
	}

	return sources
}

// defaultGroupingSets enumerates the indicator combinations that get a
// schedule: directory dimensions drive frequency indicators, article
// dimensions drive evolution indicators.
func defaultGroupingSets() []indicator.GroupingSpec {
	return []indicator.GroupingSpec{
		{ByClassification: true},
		{ByClassification: true, ByPractice: true},
		{ByInstitution: true},
		{ByThematicAreaLevel0: true},
		{ByThematicAreaLevel1: true},
		{ByState: true},
		{ByRegion: true},
		{ByOpenAccessStatus: true},
		{ByLicense: true},
		{ByAPC: true},
	}
}
