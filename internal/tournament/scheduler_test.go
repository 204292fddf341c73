package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewScheduler_DefaultsToWeeklySundayCron(t *testing.T) {
	s, err := NewScheduler(nil, nil, zap.NewNop(), Config{TournamentType: "weekly", Duration: 7 * 24 * time.Hour})
	require.NoError(t, err)
	require.NotNil(t, s.creationCron)

	// 2026-08-02 is a Sunday; the next occurrence from just before the
	// scheduled time should land at 23:50 that same day.
	from := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	next := s.creationCron.Next(from)
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 23, next.Hour())
	assert.Equal(t, 50, next.Minute())
}

func TestNewScheduler_RejectsInvalidCron(t *testing.T) {
	_, err := NewScheduler(nil, nil, zap.NewNop(), Config{CreationCron: "not a cron expression"})
	assert.Error(t, err)
}

func TestDefaultPrizeDistribution_MatchesSpecTable(t *testing.T) {
	dist := DefaultPrizeDistribution()
	assert.Equal(t, PrizeTier{Coins: 5000, Gems: 250}, dist["1"])
	assert.Equal(t, PrizeTier{Coins: 500, Gems: 25}, dist["11-50"])
	assert.Len(t, dist, 5)
}
