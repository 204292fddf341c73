// Package leaderboard implements the read side of the global leaderboard:
// the aggregator in internal/aggregator owns the writes to
// leaderboard_global, this package serves the top-K read per spec §8
// scenario 1 ("GET /leaderboard/global shows u1 with high_score=42"),
// cached behind the same read-through pattern the dashboard uses.
package leaderboard

import "time"

type Row struct {
	Rank         int       `json:"rank"`
	UserID       string    `json:"user_id"`
	Nickname     string    `json:"nickname,omitempty"`
	HighScore    int64     `json:"high_score"`
	GamesPlayed  int64     `json:"games_played"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

type GlobalLeaderboard struct {
	Total       int       `json:"total"`
	Rows        []Row     `json:"rows"`
	CachedAt    time.Time `json:"cached_at"`
}
