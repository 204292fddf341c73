package prize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flappyjet/telemetry-server/internal/tournament"
)

func TestResolveTier_ExactRankMatch(t *testing.T) {
	dist := tournament.DefaultPrizeDistribution()
	tier, ok := resolveTier(dist, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(5000), tier.Coins)
	assert.Equal(t, int64(250), tier.Gems)
}

func TestResolveTier_RangeMatch(t *testing.T) {
	dist := tournament.DefaultPrizeDistribution()

	tier, ok := resolveTier(dist, 7)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), tier.Coins)

	tier, ok = resolveTier(dist, 35)
	assert.True(t, ok)
	assert.Equal(t, int64(500), tier.Coins)
}

func TestResolveTier_RankOutsideAnyTier(t *testing.T) {
	dist := tournament.DefaultPrizeDistribution()
	_, ok := resolveTier(dist, 51)
	assert.False(t, ok)
}

func TestParseRange(t *testing.T) {
	lo, hi, ok := parseRange("4-10")
	assert.True(t, ok)
	assert.Equal(t, 4, lo)
	assert.Equal(t, 10, hi)

	_, _, ok = parseRange("not-a-range")
	assert.False(t, ok)

	_, _, ok = parseRange("5")
	assert.False(t, ok)
}
