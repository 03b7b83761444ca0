// Package main is the entry point of the defense scoring service.
//
// The server hosts the REST API for catalog administration, session
// scheduling and score recording, the SSE stream that fans committed
// score events out to connected clients, and the background jobs that
// keep sessions and scoreboards current.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/defensehub/defensehub/config"
	"github.com/defensehub/defensehub/internal/application/command"
	"github.com/defensehub/defensehub/internal/application/eventhandler"
	"github.com/defensehub/defensehub/internal/application/query"
	"github.com/defensehub/defensehub/internal/domain/catalog"
	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/infrastructure/messaging"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/postgres"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/projections"
	"github.com/defensehub/defensehub/internal/infrastructure/persistence/redis"
	"github.com/defensehub/defensehub/internal/infrastructure/realtime"
	"github.com/defensehub/defensehub/internal/infrastructure/scheduler"
	"github.com/defensehub/defensehub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/defensehub/defensehub/internal/interface/http"
	"github.com/defensehub/defensehub/internal/interface/http/handlers"
	"github.com/defensehub/defensehub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	logOpts := logger.DefaultOptions()
	logOpts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat == "text" {
		logOpts.Format = logger.FormatText
	}
	log := logger.Setup(logOpts)

	log.Info("starting defense scoring service",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var scoreboardCache *redis.ScoreboardCache
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, scoreboard caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			scoreboardCache = redis.NewScoreboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES AND UNIT OF WORK
	// ─────────────────────────────────────────────────────────────────────────
	coordinator := postgres.NewCoordinator(dbConn, log)

	councilRepo := postgres.NewCouncilRepository(dbConn)
	majorRepo := postgres.NewMajorRepository(dbConn)
	rubricRepo := postgres.NewRubricRepository(dbConn)
	groupRepo := postgres.NewGroupRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)
	scoreRepo := postgres.NewScoreRepository(dbConn)
	transcriptRepo := postgres.NewTranscriptRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS AND REAL-TIME FAN-OUT
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	registry := realtime.NewRegistry(realtime.RegistryConfig{
		MaxConnections: cfg.Realtime.MaxConnections,
		Logger:         log,
	})
	broadcaster := realtime.NewBroadcaster(realtime.BroadcasterConfig{
		Registry: registry,
		Logger:   log,
	})

	relay := eventhandler.NewScoreEventRelay(broadcaster, log)
	if err := relay.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register score relay: %w", err)
	}

	audit := eventhandler.NewAuditLogHandler(log)
	if err := audit.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register audit handler: %w", err)
	}

	standings := projections.NewStandingsView()
	projector := eventhandler.NewStandingsProjector(standings, log)
	if err := projector.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register standings projector: %w", err)
	}
	if err := primeStandings(ctx, sessionRepo, scoreRepo, rubricRepo, standings); err != nil {
		log.Warn("standings warm-up failed, view rebuilds from events", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	var invalidator command.ScoreboardInvalidator
	var readCache query.ScoreboardCache
	if scoreboardCache != nil {
		invalidator = scoreboardCache
		readCache = scoreboardCache
	}

	catalogHandler := command.NewCatalogHandler(coordinator, log)
	lifecycleHandler := command.NewLifecycleHandler(coordinator, log)
	sessionHandler := command.NewSessionHandler(coordinator, log)
	scoreHandler := command.NewRecordScoreHandler(coordinator, eventBus, invalidator, log)
	transcriptHandler := command.NewTranscriptHandler(coordinator, log)

	catalogQueries := query.NewCatalogQueries(councilRepo, majorRepo, rubricRepo, groupRepo)
	sessionQueries := query.NewSessionQueries(sessionRepo, transcriptRepo)
	scoreboardReader := query.NewScoreboardReader(sessionRepo, scoreRepo, readCache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		health.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.DefaultSchedulerConfig()
		schedCfg.Logger = log
		sched = scheduler.NewScheduler(schedCfg)

		autostartCfg := jobs.DefaultSessionAutostartConfig()
		autostartCfg.Timeout = cfg.Scheduler.JobTimeout
		autostart := jobs.NewSessionAutostartJob(sessionRepo, sessionHandler, autostartCfg, log)
		if err := sched.Register(autostart, scheduler.NewIntervalSchedule(cfg.Scheduler.SessionAutostartInterval)); err != nil {
			return fmt.Errorf("failed to register autostart job: %w", err)
		}

		if scoreboardCache != nil {
			refreshCfg := jobs.DefaultRefreshScoreboardsConfig()
			refreshCfg.Timeout = cfg.Scheduler.JobTimeout
			refresh := jobs.NewRefreshScoreboardsJob(sessionRepo, scoreRepo, scoreboardCache, refreshCfg, log)
			if err := sched.Register(refresh, scheduler.NewIntervalSchedule(cfg.Scheduler.ScoreboardRefreshInterval)); err != nil {
				return fmt.Errorf("failed to register scoreboard refresh job: %w", err)
			}
		}

		rollover := jobs.NewMetricsRolloverJob(eventBus.Metrics(), log)
		if err := sched.Register(rollover, scheduler.NewIntervalSchedule(cfg.Scheduler.MetricsResetInterval)); err != nil {
			return fmt.Errorf("failed to register metrics rollover job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Addr = cfg.HTTP.Addr
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.StreamQueueSize = cfg.Realtime.QueueCapacity
	serverCfg.StreamSendTimeout = cfg.Realtime.SendTimeout
	serverCfg.StreamMaxSendAttempts = cfg.Realtime.MaxSendAttempts

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		Catalog:        catalogHandler,
		Lifecycle:      lifecycleHandler,
		Sessions:       sessionHandler,
		Scores:         scoreHandler,
		Transcripts:    transcriptHandler,
		CatalogQueries: catalogQueries,
		SessionQueries: sessionQueries,
		Scoreboard:     scoreboardReader,
		Standings:      standings,
		Registry:       registry,
		Jobs:           sched,
		Features:       cfg.Features,
		BusMetrics:     eventBus.Metrics(),
		Logger:         log,
		HealthChecker:  health,
	})

	errCh := server.StartAsync()
	log.Info("defense scoring service is running", "addr", cfg.HTTP.Addr)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// primeStandings seeds the standings view from the store so the first reads
// after startup do not wait for the next score event.
func primeStandings(
	ctx context.Context,
	sessions defense.SessionRepository,
	scores defense.ScoreRepository,
	rubrics catalog.RubricRepository,
	view *projections.StandingsView,
) error {
	allRubrics, err := rubrics.List(ctx, false)
	if err != nil {
		return err
	}
	weights := make(map[int64]float64, len(allRubrics))
	for _, r := range allRubrics {
		weights[r.ID] = r.Weight
	}
	view.SetRubricWeights(weights)

	allSessions, err := sessions.List(ctx, false)
	if err != nil {
		return err
	}

	var views []defense.ScoreView
	for _, session := range allSessions {
		sessionScores, err := scores.ListBySession(ctx, session.ID, false)
		if err != nil {
			return err
		}
		for _, score := range sessionScores {
			views = append(views, score.View())
		}
	}

	view.Rebuild(views)
	return nil
}
