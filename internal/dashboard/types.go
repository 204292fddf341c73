// Package dashboard implements the operator-facing analytics read API,
// composing aggregator output and bounded event-log queries through the
// query cache facade, grounded on the reference game server's console
// status/usage endpoints (read-only handlers over aggregate SQL, never the
// hot write path).
package dashboard

import "time"

type Overview struct {
	TotalUsers       int64     `json:"total_users"`
	ActiveUsersToday int64     `json:"active_users_today"`
	EventsToday      int64     `json:"events_today"`
	RevenueToday     float64   `json:"revenue_today_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

type DAUPoint struct {
	Date time.Time `json:"date"`
	DAU  int64     `json:"dau"`
}

type DAUTrend struct {
	Days        int        `json:"days"`
	Points      []DAUPoint `json:"points"`
	LastUpdated time.Time  `json:"last_updated"`
}

type LevelPerformance struct {
	Zone        int                `json:"zone"`
	Levels      []LevelStat        `json:"levels"`
	LastUpdated time.Time          `json:"last_updated"`
}

type LevelStat struct {
	Level       int     `json:"level"`
	Attempts    int64   `json:"attempts"`
	Completions int64   `json:"completions"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDuration float64 `json:"avg_duration_seconds"`
}

type RetentionCohort struct {
	CohortDate time.Time          `json:"cohort_date"`
	NewUsers   int64              `json:"new_users"`
	D1         float64            `json:"d1"`
	D3         float64            `json:"d3"`
	D7         float64            `json:"d7"`
	D14        float64            `json:"d14"`
	D30        float64            `json:"d30"`
}

type Retention struct {
	Cohorts     []RetentionCohort `json:"cohorts"`
	LastUpdated time.Time         `json:"last_updated"`
}

type EventCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

type TopEvents struct {
	Events      []EventCount `json:"events"`
	LastUpdated time.Time    `json:"last_updated"`
}

type LevelEndRow struct {
	UserID          string `json:"user_id"`
	Outcome         string `json:"outcome"`
	DurationSeconds int64  `json:"duration_seconds"`
	Attempts        int64  `json:"attempts"`
}

type LevelEnds struct {
	Level       int           `json:"level"`
	Date        string        `json:"date"`
	Rows        []LevelEndRow `json:"rows"`
	LastUpdated time.Time     `json:"last_updated"`
}

type IAPFunnelPoint struct {
	Date       time.Time `json:"date"`
	Initiated  int64     `json:"initiated"`
	Completed  int64     `json:"completed"`
	Conversion float64   `json:"conversion"`
}

type IAPFunnel struct {
	Days        int              `json:"days"`
	Points      []IAPFunnelPoint `json:"points"`
	LastUpdated time.Time        `json:"last_updated"`
}

type CurrencySinkRow struct {
	Currency string `json:"currency"`
	Source   string `json:"source"`
	Earned   int64  `json:"earned"`
	Spent    int64  `json:"spent"`
}

type CurrencySinks struct {
	Days        int               `json:"days"`
	Rows        []CurrencySinkRow `json:"rows"`
	LastUpdated time.Time         `json:"last_updated"`
}

type Health struct {
	Status      string    `json:"status"`
	DBHealthy   bool      `json:"db_healthy"`
	CacheHealthy bool     `json:"cache_healthy"`
	QueueMode   string    `json:"queue_mode"`
	LastUpdated time.Time `json:"last_updated"`
}
