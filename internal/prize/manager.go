package prize

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/tournament"
)

// Leaderboard abstracts the read the prize manager needs from the
// tournament package, narrowed to avoid depending on its full manager.
type Leaderboard interface {
	Leaderboard(ctx context.Context, tournamentID string, limit, offset int) ([]tournament.LeaderboardRow, int, error)
}

// Notifier delivers a best-effort external notification once prizes are
// computed. A failure here never blocks or fails distribution.
type Notifier interface {
	NotifyPrizesAwarded(ctx context.Context, tournamentID string, count int)
}

type noopNotifier struct{}

func (noopNotifier) NotifyPrizesAwarded(context.Context, string, int) {}

type Manager struct {
	repo     *Repository
	lb       Leaderboard
	notifier Notifier
	logger   *zap.Logger
}

func NewManager(repo *Repository, lb Leaderboard, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, lb: lb, notifier: noopNotifier{}, logger: logger}
}

func (m *Manager) SetNotifier(n Notifier) {
	if n != nil {
		m.notifier = n
	}
}

// Distribute computes and inserts prize rows for a tournament that has
// just ended, grounded on spec §4.7 steps 1-3. Safe to call concurrently
// or more than once for the same tournament: CountForTournament makes the
// common case a no-op, and the unique constraint backstops any race that
// slips past it (I4/P4).
func (m *Manager) Distribute(ctx context.Context, t *tournament.Tournament) {
	existing, err := m.repo.CountForTournament(ctx, t.ID)
	if err != nil {
		m.logger.Error("prize: count check failed", zap.String("tournament_id", t.ID), zap.Error(err))
		return
	}
	if existing > 0 {
		return
	}

	dist := t.PrizeDistribution
	if dist == nil {
		dist = tournament.DefaultPrizeDistribution()
	}

	rows, _, err := m.lb.Leaderboard(ctx, t.ID, maxRankedPrizes, 0)
	if err != nil {
		m.logger.Error("prize: leaderboard read failed", zap.String("tournament_id", t.ID), zap.Error(err))
		return
	}

	var prizes []*Prize
	for _, row := range rows {
		tier, ok := resolveTier(dist, row.Rank)
		if !ok {
			continue
		}
		prizes = append(prizes, &Prize{
			TournamentID: t.ID,
			UserID:       row.UserID,
			Rank:         row.Rank,
			Coins:        tier.Coins,
			Gems:         tier.Gems,
		})
	}
	if len(prizes) == 0 {
		return
	}

	inserted, err := m.repo.InsertBatch(ctx, prizes)
	if err != nil {
		m.logger.Error("prize: insert batch failed", zap.String("tournament_id", t.ID), zap.Error(err))
		return
	}
	m.logger.Info("prizes distributed", zap.String("tournament_id", t.ID), zap.Int("count", inserted))
	m.notifier.NotifyPrizesAwarded(ctx, t.ID, inserted)
}

// resolveTier finds the prize tier a rank falls into. Keys are either a
// single rank ("3") or an inclusive range ("4-10"); ranges are parsed on
// every lookup since the distribution table is small (at most a few
// dozen keys) and changes per tournament.
func resolveTier(dist map[string]tournament.PrizeTier, rank int) (tournament.PrizeTier, bool) {
	if tier, ok := dist[strconv.Itoa(rank)]; ok {
		return tier, true
	}
	for key, tier := range dist {
		lo, hi, ok := parseRange(key)
		if ok && rank >= lo && rank <= hi {
			return tier, true
		}
	}
	return tournament.PrizeTier{}, false
}

func parseRange(key string) (int, int, bool) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func (m *Manager) ListPending(ctx context.Context, userID string) ([]*Prize, error) {
	return m.repo.ListPending(ctx, userID)
}

func (m *Manager) ListHistory(ctx context.Context, userID string) ([]*Prize, error) {
	return m.repo.ListClaimed(ctx, userID)
}

// Claim performs the idempotent claim compare-and-swap. Exactly one of two
// concurrent callers observes claimed:true (P5).
func (m *Manager) Claim(ctx context.Context, prizeID, userID string) (*ClaimResult, error) {
	p, reason, err := m.repo.Claim(ctx, prizeID, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &ClaimResult{Claimed: false, Reason: reason}, nil
	}
	return &ClaimResult{Claimed: true, Reward: &Reward{Coins: p.Coins, Gems: p.Gems}}, nil
}
