// Package config loads the server's runtime configuration from the
// environment variables enumerated in the specification, applying the
// documented defaults. It mirrors the reference game server's practice of
// resolving configuration once at startup into a plain struct that is then
// passed explicitly through the application, rather than read from the
// environment ad-hoc throughout the codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds every tunable named in spec §6.6.
type Config struct {
	DatabaseURL string
	CacheURL    string
	Port        int
	Env         Environment

	JobWorkers    int
	JobBatchSize  int
	JobDeadline   time.Duration
	JobMaxRetries int

	RateLimitPoints     int
	RateLimitDurationS  int
	EventRetentionDays  int
	TournamentType      string
	TournamentPrizePool int
	TournamentDuration  time.Duration
	TournamentGameMode  string
	TournamentCreateCron string

	GlobalAggregatorInterval     time.Duration
	TournamentAggregatorInterval time.Duration
	TournamentSweepInterval      time.Duration
	RetentionSweepInterval       time.Duration

	DBPoolMaxConns     int32
	DBPoolMinConns     int32
	DBAcquireTimeout   time.Duration
	DBConnIdleTimeout  time.Duration
	DBStatementTimeout time.Duration

	BatchCap int
}

// Load resolves a Config from the process environment, applying spec
// defaults for anything unset. It returns an error when the required
// variable DATABASE_URL is missing or when ENV is not one of
// development, staging or production.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL: dbURL,
		CacheURL:    os.Getenv("CACHE_URL"),
		Port:        envInt("PORT", 3000),
		Env:         Environment(envStr("ENV", string(EnvDevelopment))),

		JobWorkers:    envInt("JOB_WORKERS", 10),
		JobBatchSize:  envInt("JOB_BATCH_SIZE", 10000),
		JobDeadline:   30 * time.Second,
		JobMaxRetries: 3,

		RateLimitPoints:     envInt("RATE_LIMIT_POINTS", 100),
		RateLimitDurationS:  envInt("RATE_LIMIT_DURATION_S", 60),
		EventRetentionDays:  envInt("EVENT_RETENTION_DAYS", 90),
		TournamentType:       envStr("TOURNAMENT_TYPE", "weekly"),
		TournamentPrizePool:  envInt("TOURNAMENT_PRIZE_POOL", 50000),
		TournamentDuration:   7 * 24 * time.Hour,
		TournamentGameMode:   envStr("TOURNAMENT_GAME_MODE", "classic"),
		TournamentCreateCron: envStr("TOURNAMENT_CREATE_CRON", ""),

		GlobalAggregatorInterval:     10 * time.Minute,
		TournamentAggregatorInterval: 4 * time.Minute,
		TournamentSweepInterval:      1 * time.Minute,
		RetentionSweepInterval:       1 * time.Hour,

		DBPoolMaxConns:     int32(envInt("DB_POOL_MAX_CONNS", 50)),
		DBPoolMinConns:     int32(envInt("DB_POOL_MIN_CONNS", 5)),
		DBAcquireTimeout:   5 * time.Second,
		DBConnIdleTimeout:  30 * time.Second,
		DBStatementTimeout: 10 * time.Second,

		BatchCap: 100,
	}

	switch cfg.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return nil, fmt.Errorf("config: ENV must be one of development|staging|production, got %q", cfg.Env)
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
