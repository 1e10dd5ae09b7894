package repositories

import (
	"context"
	"time"

	"trades-api/internal/models"
)

// TradeRepository is the append-only ledger of trades.
type TradeRepository interface {
	// InsertMany appends trades and returns how many were stored.
	// Failures wrap models.ErrStorage.
	InsertMany(ctx context.Context, trades []models.Trade) (int, error)

	// FindUpTo returns every trade with UTCTime at or before cutoff, in no
	// particular order. Failures wrap models.ErrRetrieval.
	FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error)

	// Count returns the number of stored trades.
	Count(ctx context.Context) (int64, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store handle.
	Close() error
}

// Drivers accepted by LEDGER_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
