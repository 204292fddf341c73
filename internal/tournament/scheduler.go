package tournament

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/cronexpr"
)

// defaultCreationCron matches a new weekly tournament being scheduled every
// Sunday at 23:50 UTC, ten minutes before the weekly reset, per the
// specification's default tournament calendar.
const defaultCreationCron = "50 23 * * 0"

// Scheduler arms a single timer against the earliest upcoming deadline
// across all tournaments (instead of polling on a fixed interval),
// following the reference leaderboard scheduler's Update/timer-arming
// shape, and drives periodic creation of the next tournament from a cron
// expression.
type Scheduler struct {
	sync.Mutex
	manager *Manager
	repo    *Repository
	logger  *zap.Logger

	tournamentType string
	gameMode       string
	duration       time.Duration
	creationCron   *cronexpr.Expression

	timer        *time.Timer
	creationNext time.Time

	ctx         context.Context
	ctxCancelFn context.CancelFunc
}

// Config configures the kind of tournament the scheduler auto-creates.
type Config struct {
	TournamentType string
	GameMode       string
	Duration       time.Duration
	CreationCron   string
}

func NewScheduler(manager *Manager, repo *Repository, logger *zap.Logger, cfg Config) (*Scheduler, error) {
	cronLine := cfg.CreationCron
	if cronLine == "" {
		cronLine = defaultCreationCron
	}
	expr, err := cronexpr.Parse(cronLine)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		manager:        manager,
		repo:           repo,
		logger:         logger,
		tournamentType: cfg.TournamentType,
		gameMode:       cfg.GameMode,
		duration:       cfg.Duration,
		creationCron:   expr,
		ctx:            ctx,
		ctxCancelFn:    cancel,
	}, nil
}

// Start arms the transition timer and spawns the creation loop. Update is
// called once immediately to pick up any tournaments already due.
func (s *Scheduler) Start() {
	s.Update()
	go s.creationLoop()
}

func (s *Scheduler) Stop() {
	s.Lock()
	s.ctxCancelFn()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.Unlock()
}

// Update re-evaluates the transition sweep and rearms the timer to the
// next known deadline. Called on startup, after every sweep, and may be
// called externally after a manual tournament creation to pick up a
// sooner deadline without waiting a full tick.
func (s *Scheduler) Update() {
	s.Lock()
	defer s.Unlock()

	now := time.Now().UTC()
	s.manager.sweep(s.ctx, now)

	if s.timer != nil {
		s.timer.Stop()
	}

	next, ok := s.repo.NextDeadline(s.ctx)
	if !ok {
		// Nothing scheduled; re-check on a conservative fallback interval
		// rather than leaving the scheduler permanently idle.
		s.timer = time.AfterFunc(time.Minute, s.onTimer)
		return
	}

	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	s.timer = time.AfterFunc(wait, s.onTimer)
}

func (s *Scheduler) onTimer() {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	s.Update()
}

// creationLoop sleeps until the next cron occurrence and creates the
// upcoming tournament for that slot, relying on the (type, start_at)
// unique constraint to make duplicate creation across replicas harmless.
func (s *Scheduler) creationLoop() {
	for {
		now := time.Now().UTC()
		next := s.creationCron.Next(now)
		wait := time.Until(next)

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.createNext(next)
		s.Update()
	}
}

func (s *Scheduler) createNext(startAt time.Time) {
	t := &Tournament{
		Name:              s.tournamentType + " tournament",
		Type:              s.tournamentType,
		StartAt:           startAt,
		EndAt:             startAt.Add(s.duration),
		GameMode:          s.gameMode,
		PrizeDistribution: DefaultPrizeDistribution(),
	}
	if err := s.manager.Create(s.ctx, t); err != nil {
		s.logger.Warn("tournament: scheduled creation skipped", zap.Error(err), zap.Time("start_at", startAt))
		return
	}
}
