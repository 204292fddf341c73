// Package migrations applies the schema defined in ./sql using
// rubenv/sql-migrate with a packr asset box, the same combination the
// reference game server's migrations/migrate.go uses (packr lets the SQL
// files travel inside the compiled binary).
package migrations

import (
	"database/sql"
	"fmt"

	"github.com/gobuffalo/packr"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

const migrationTable = "schema_migrations"

// Run applies all pending migrations found in ./sql against db, which must
// already be open (the caller owns its lifecycle — this package never
// closes it).
func Run(logger *zap.Logger, db *sql.DB) (int, error) {
	migrate.SetTable(migrationTable)

	box := packr.NewBox("./sql")
	source := &migrate.AssetMigrationSource{
		Asset: box.MustBytes,
		AssetDir: func(path string) ([]string, error) {
			return box.List(), nil
		},
	}

	n, err := migrate.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("migrations: apply: %w", err)
	}
	logger.Info("Applied migrations", zap.Int("count", n))
	return n, nil
}
