// Package sqlite is an embedded ledger store backed by modernc.org/sqlite
// (pure Go, no cgo). It serves offline use from ledgerctl and store round
// trips in tests via ":memory:".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"trades-api/internal/models"
)

// Amounts are TEXT so decimals survive untouched; utc_time is unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    utc_time   INTEGER NOT NULL,
    operation  TEXT    NOT NULL,
    market     TEXT    NOT NULL,
    base_coin  TEXT    NOT NULL,
    quote_coin TEXT    NOT NULL,
    amount     TEXT    NOT NULL,
    price      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_utc_time ON trades(utc_time);
`

// TradeRepository stores trades in a single SQLite file.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository opens (or creates) the database at path and applies the schema.
func NewTradeRepository(path string) (*TradeRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger %q: %w", path, err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &TradeRepository{db: db}, nil
}

func (r *TradeRepository) InsertMany(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (utc_time, operation, market, base_coin, quote_coin, amount, price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %v", models.ErrStorage, err)
	}
	defer stmt.Close()

	for i, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.UTCTime.UTC().UnixMilli(),
			string(t.Operation),
			t.Market,
			t.BaseCoin,
			t.QuoteCoin,
			t.Amount.String(),
			t.Price.String(),
		); err != nil {
			return 0, fmt.Errorf("%w: insert trade %d: %v", models.ErrStorage, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", models.ErrStorage, err)
	}

	return len(trades), nil
}

func (r *TradeRepository) FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT utc_time, operation, market, base_coin, quote_coin, amount, price
		FROM trades
		WHERE utc_time <= ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: query trades: %v", models.ErrRetrieval, err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var (
			millis        int64
			op            string
			amount, price string
			t             models.Trade
		)
		if err := rows.Scan(&millis, &op, &t.Market, &t.BaseCoin, &t.QuoteCoin, &amount, &price); err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", models.ErrRetrieval, err)
		}
		t.UTCTime = time.UnixMilli(millis).UTC()
		t.Operation = models.Operation(op)
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%w: stored amount %q: %v", models.ErrRetrieval, amount, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("%w: stored price %q: %v", models.ErrRetrieval, price, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trades: %v", models.ErrRetrieval, err)
	}

	return trades, nil
}

func (r *TradeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count trades: %v", models.ErrRetrieval, err)
	}
	return n, nil
}

func (r *TradeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *TradeRepository) Close() error {
	return r.db.Close()
}
