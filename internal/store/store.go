// Package store opens the ledger backend selected by LEDGER_DRIVER.
package store

import (
	"context"
	"fmt"

	"trades-api/internal/config"
	"trades-api/internal/repositories"
	"trades-api/internal/repositories/mongo"
	"trades-api/internal/repositories/postgres"
	"trades-api/internal/repositories/sqlite"
	"trades-api/pkg/database"
)

// Open connects to the configured ledger. The caller owns the returned
// repository and must Close it.
func Open(ctx context.Context, cfg *config.Config) (repositories.TradeRepository, error) {
	switch cfg.Ledger.Driver {
	case repositories.DriverMongo, "":
		db, err := database.NewMongoDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		return mongo.NewTradeRepository(db, cfg.Database.Collection), nil

	case repositories.DriverSQLite:
		return sqlite.NewTradeRepository(cfg.SQLite.Path)

	case repositories.DriverPostgres:
		pool, err := postgres.Connect(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		repo, err := postgres.NewTradeRepository(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}
