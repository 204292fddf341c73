package tournament

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/cache"
)

const maxLeaderboardPage = 100

// EndHook is invoked once a tournament transitions to ended, letting the
// prize manager compute payouts without the tournament package importing
// it directly.
type EndHook func(ctx context.Context, t *Tournament)

type Manager struct {
	repo    *Repository
	cache   cache.QueryCache
	logger  *zap.Logger
	onEnded []EndHook
}

func NewManager(repo *Repository, qc cache.QueryCache, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, cache: qc, logger: logger}
}

// OnEnded registers a callback fired after a tournament transitions to
// ended. Used to wire in prize computation without a circular import.
func (m *Manager) OnEnded(hook EndHook) {
	m.onEnded = append(m.onEnded, hook)
}

func (m *Manager) Create(ctx context.Context, t *Tournament) error {
	if t.PrizeDistribution == nil {
		t.PrizeDistribution = DefaultPrizeDistribution()
	}
	if err := m.repo.Create(ctx, t); err != nil {
		return err
	}
	m.logger.Info("tournament created",
		zap.String("tournament_id", t.ID), zap.String("type", t.Type),
		zap.Time("start_at", t.StartAt), zap.Time("end_at", t.EndAt))
	return nil
}

// CurrentView is what GET /tournaments/current serves: the tournament
// itself plus the two fields derived from it per §6.2 ("current active or
// next upcoming + time remaining + participant count").
type CurrentView struct {
	Tournament       *Tournament   `json:"tournament"`
	ParticipantCount int           `json:"participant_count"`
	TimeRemaining    time.Duration `json:"time_remaining_seconds"`
}

// Current returns the single tournament the API surfaces as "current": the
// active one if any exists, else the soonest upcoming one, per spec §6.2's
// "current active or next upcoming" read. TimeRemaining counts down to
// end_at for an active tournament and to start_at for an upcoming one.
func (m *Manager) Current(ctx context.Context) (*CurrentView, error) {
	active, err := m.repo.ActiveTournaments(ctx)
	if err != nil {
		return nil, err
	}

	var t *Tournament
	var remaining time.Duration
	if len(active) > 0 {
		t = active[0]
		remaining = time.Until(t.EndAt)
	} else {
		t, err = m.repo.NextUpcoming(ctx)
		if err != nil {
			return nil, err
		}
		remaining = time.Until(t.StartAt)
	}
	if remaining < 0 {
		remaining = 0
	}

	count, err := m.repo.ParticipantCount(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return &CurrentView{Tournament: t, ParticipantCount: count, TimeRemaining: remaining}, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Tournament, error) {
	return m.repo.GetByID(ctx, id)
}

// Leaderboard returns a page of ranked rows straight from the repository,
// uncached. Used internally by the prize manager, which only ever reads
// once per tournament end and doesn't need a cache-freshness timestamp.
func (m *Manager) Leaderboard(ctx context.Context, tournamentID string, limit, offset int) ([]LeaderboardRow, int, error) {
	if limit <= 0 || limit > maxLeaderboardPage {
		limit = maxLeaderboardPage
	}
	if offset < 0 {
		offset = 0
	}
	return m.repo.Leaderboard(ctx, tournamentID, limit, offset)
}

// LeaderboardPage is the cached read-through result for one tournament
// leaderboard page, carrying the cache-population timestamp per §6.2's
// "cache freshness timestamp" requirement.
type LeaderboardPage struct {
	Rows     []LeaderboardRow `json:"rows"`
	Total    int              `json:"total"`
	CachedAt time.Time        `json:"cached_at"`
}

// CachedLeaderboard is the API-facing read: same data as Leaderboard, but
// served through the query cache so repeated reads of a hot tournament's
// top page don't hit the database every time, per §4.8's
// "tournament leaderboard top-K: 240s" cache entry.
func (m *Manager) CachedLeaderboard(ctx context.Context, tournamentID string, limit, offset int) (*LeaderboardPage, error) {
	if limit <= 0 || limit > maxLeaderboardPage {
		limit = maxLeaderboardPage
	}
	if offset < 0 {
		offset = 0
	}

	key := fmt.Sprintf("tournament:%s:leaderboard:%d:%d", tournamentID, limit, offset)
	if raw, ok := m.cache.Get(ctx, key); ok {
		var page LeaderboardPage
		if err := json.Unmarshal(raw, &page); err == nil {
			return &page, nil
		}
	}

	rows, total, err := m.repo.Leaderboard(ctx, tournamentID, limit, offset)
	if err != nil {
		return nil, err
	}
	page := &LeaderboardPage{Rows: rows, Total: total, CachedAt: time.Now().UTC()}

	if raw, err := json.Marshal(page); err == nil {
		m.cache.Set(ctx, key, raw, cache.TTLTournamentLeaderboardTop)
	}
	return page, nil
}

func (m *Manager) UserRank(ctx context.Context, tournamentID, userID string) (int, bool, error) {
	return m.repo.UserRank(ctx, tournamentID, userID)
}

// sweep runs one clock tick: activates due upcoming tournaments and ends
// due active ones, invalidating the leaderboard cache and firing end hooks
// for each transition actually applied. Mirrors the reference scheduler's
// per-tick sweep over every registered leaderboard.
func (m *Manager) sweep(ctx context.Context, now time.Time) {
	due, err := m.repo.DueForTransition(ctx, now)
	if err != nil {
		m.logger.Error("tournament: sweep query failed", zap.Error(err))
		return
	}
	for _, t := range due {
		switch t.Status {
		case StatusUpcoming:
			applied, err := m.repo.TransitionToActive(ctx, t.ID, now)
			if err != nil {
				m.logger.Error("tournament: activate failed", zap.String("tournament_id", t.ID), zap.Error(err))
				continue
			}
			if applied {
				m.logger.Info("tournament activated", zap.String("tournament_id", t.ID))
				m.cache.Invalidate(ctx, "tournament:"+t.ID)
				m.cache.Invalidate(ctx, "tournament:current")
			}
		case StatusActive:
			applied, err := m.repo.TransitionToEnded(ctx, t.ID, now)
			if err != nil {
				m.logger.Error("tournament: end failed", zap.String("tournament_id", t.ID), zap.Error(err))
				continue
			}
			if applied {
				m.logger.Info("tournament ended", zap.String("tournament_id", t.ID))
				m.cache.Invalidate(ctx, "tournament:"+t.ID)
				m.cache.Invalidate(ctx, "tournament:current")
				t.Status = StatusEnded
				for _, hook := range m.onEnded {
					hook(ctx, t)
				}
			}
		}
	}
}
