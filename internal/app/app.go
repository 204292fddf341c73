// Package app wires every component into a single application context,
// constructed once at startup and torn down in reverse order at shutdown,
// mirroring the reference game server's main.go composition root.
package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/aggregator"
	"github.com/flappyjet/telemetry-server/internal/api"
	"github.com/flappyjet/telemetry-server/internal/cache"
	"github.com/flappyjet/telemetry-server/internal/config"
	"github.com/flappyjet/telemetry-server/internal/dashboard"
	"github.com/flappyjet/telemetry-server/internal/events"
	"github.com/flappyjet/telemetry-server/internal/ingest"
	"github.com/flappyjet/telemetry-server/internal/leaderboard"
	"github.com/flappyjet/telemetry-server/internal/prize"
	"github.com/flappyjet/telemetry-server/internal/queue"
	"github.com/flappyjet/telemetry-server/internal/retention"
	"github.com/flappyjet/telemetry-server/internal/store"
	"github.com/flappyjet/telemetry-server/internal/tournament"
)

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store       *store.Store
	redisClient *redis.Client
	queryCache  cache.QueryCache
	jobQueue    *queue.Queue

	globalAgg     *aggregator.GlobalAggregator
	tournamentAgg *aggregator.TournamentAggregator
	tournamentRepo *tournament.Repository

	tournamentMgr *tournament.Manager
	scheduler     *tournament.Scheduler

	prizeMgr     *prize.Manager
	dashboardMgr *dashboard.Manager
	retentionJob *retention.Job

	httpServer *api.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs every component and wires their dependencies, but starts
// nothing yet — callers invoke Start once construction succeeds.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithCancel(ctx)

	st, err := store.Connect(appCtx, logger, store.Config{
		URL:               cfg.DatabaseURL,
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		AcquireTimeout:    cfg.DBAcquireTimeout,
		ConnIdleTimeout:   cfg.DBConnIdleTimeout,
		StatementTimeout:  cfg.DBStatementTimeout,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	var redisClient *redis.Client
	var queryCache cache.QueryCache = cache.NewNoop()
	if cfg.CacheURL != "" {
		c, err := cache.NewClient(appCtx, cfg.CacheURL, logger)
		if err != nil {
			logger.Warn("cache unavailable at startup, degrading to noop cache", zap.Error(err))
		} else {
			redisClient = c
			queryCache = cache.NewRedisCache(c, logger)
		}
	}

	jobQueue := queue.New(appCtx, redisClient, logger, queue.Config{
		WorkerCount: cfg.JobWorkers,
		JobDeadline: cfg.JobDeadline,
		MaxAttempts: cfg.JobMaxRetries,
	})

	validator := events.NewValidator()
	ingestRepo := ingest.NewRepository(st.Pool)
	ingestSvc := ingest.NewService(logger, validator, ingestRepo, jobQueue)

	globalAgg := aggregator.NewGlobalAggregator(st.Pool, logger, queryCache, cfg.JobBatchSize)
	tournamentAgg := aggregator.NewTournamentAggregator(st.Pool, logger, queryCache, cfg.JobBatchSize)

	leaderboardRepo := leaderboard.NewRepository(st.Pool)
	leaderboardMgr := leaderboard.NewManager(leaderboardRepo, queryCache)

	tournamentRepo := tournament.NewRepository(st.Pool)
	tournamentMgr := tournament.NewManager(tournamentRepo, queryCache, logger)
	scheduler, err := tournament.NewScheduler(tournamentMgr, tournamentRepo, logger, tournament.Config{
		TournamentType: cfg.TournamentType,
		GameMode:       cfg.TournamentGameMode,
		Duration:       cfg.TournamentDuration,
		CreationCron:   cfg.TournamentCreateCron,
	})
	if err != nil {
		st.Close()
		cancel()
		return nil, err
	}

	prizeRepo := prize.NewRepository(st.Pool)
	prizeMgr := prize.NewManager(prizeRepo, tournamentMgr, logger)
	tournamentMgr.OnEnded(func(ctx context.Context, t *tournament.Tournament) {
		prizeMgr.Distribute(ctx, t)
	})

	dashboardRepo := dashboard.NewRepository(st.Pool)
	dashboardMgr := dashboard.NewManager(dashboardRepo, queryCache, jobQueue, st, logger)

	retentionJob := retention.NewJob(st.Pool, logger, cfg.RetentionSweepInterval,
		retention.Policy{Table: "events", AgeColumn: "received_at", ThresholdColumn: "processed_at", RetentionDays: cfg.EventRetentionDays})

	ingestHandler := api.NewIngestHandler(logger, ingestSvc)
	tournamentHandler := api.NewTournamentHandler(logger, tournamentMgr)
	prizeHandler := api.NewPrizeHandler(logger, prizeMgr)
	dashboardHandler := api.NewDashboardHandler(logger, dashboardMgr)
	leaderboardHandler := api.NewLeaderboardHandler(logger, leaderboardMgr)
	limiter := api.NewIPRateLimiter(cfg.RateLimitPoints, cfg.RateLimitDurationS)

	router := api.NewRouter(logger, api.Handlers{
		Ingest:      ingestHandler,
		Tournament:  tournamentHandler,
		Prize:       prizeHandler,
		Dashboard:   dashboardHandler,
		Leaderboard: leaderboardHandler,
	}, limiter)

	httpServer := api.NewServer(":"+strconv.Itoa(cfg.Port), router, logger)

	jobQueue.RegisterHandler(ingest.JobKindProcessEvent, func(ctx context.Context, job *queue.Job) error {
		// Aggregators always re-read from the source of truth on their own
		// timer; the job's only role is to nudge latency down between
		// ticks, so a no-op handler that just acks is correct here.
		return nil
	})

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		redisClient:    redisClient,
		queryCache:     queryCache,
		jobQueue:       jobQueue,
		globalAgg:      globalAgg,
		tournamentAgg:  tournamentAgg,
		tournamentRepo: tournamentRepo,
		tournamentMgr:  tournamentMgr,
		scheduler:      scheduler,
		prizeMgr:       prizeMgr,
		dashboardMgr:   dashboardMgr,
		retentionJob:   retentionJob,
		httpServer:     httpServer,
		ctx:            appCtx,
		cancel:         cancel,
	}, nil
}

// Start launches the job queue workers, the timer-driven aggregator and
// tournament-sweep loops, the retention job, and the HTTP server.
func (a *App) Start() {
	a.jobQueue.Start()
	a.scheduler.Start()

	a.wg.Add(1)
	go a.runGlobalAggregatorLoop()

	a.wg.Add(1)
	go a.runTournamentAggregatorLoop()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.retentionJob.Run(a.ctx)
	}()

	a.httpServer.Start()
}

func (a *App) runGlobalAggregatorLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.GlobalAggregatorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			n, err := a.globalAgg.Run(a.ctx)
			if err != nil {
				a.logger.Error("global aggregator run failed", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Info("global aggregator processed events", zap.Int("count", n))
			}
		}
	}
}

func (a *App) runTournamentAggregatorLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.TournamentAggregatorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			active, err := a.tournamentRepo.ActiveTournaments(a.ctx)
			if err != nil {
				a.logger.Error("tournament aggregator: list active failed", zap.Error(err))
				continue
			}
			for _, t := range active {
				n, err := a.tournamentAgg.RunForTournament(a.ctx, aggregator.ActiveTournament{ID: t.ID, StartAt: t.StartAt, EndAt: t.EndAt})
				if err != nil {
					a.logger.Error("tournament aggregator run failed", zap.String("tournament_id", t.ID), zap.Error(err))
					continue
				}
				if n > 0 {
					a.logger.Info("tournament aggregator processed events", zap.String("tournament_id", t.ID), zap.Int("count", n))
				}
			}
		}
	}
}

// Stop shuts the application down in reverse dependency order: stop
// accepting HTTP requests first, then timers, then drain the queue, then
// close the cache and database pool last.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Warn("http server shutdown error", zap.Error(err))
	}

	a.scheduler.Stop()
	a.cancel()
	a.wg.Wait()

	a.jobQueue.Stop()

	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	a.store.Close()
}
