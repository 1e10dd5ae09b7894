package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"trades-api/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id         BIGSERIAL PRIMARY KEY,
    utc_time   TIMESTAMPTZ NOT NULL,
    operation  TEXT        NOT NULL,
    market     TEXT        NOT NULL,
    base_coin  TEXT        NOT NULL,
    quote_coin TEXT        NOT NULL,
    amount     NUMERIC     NOT NULL,
    price      NUMERIC     NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_utc_time ON trades (utc_time);
`

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

// TradeRepository stores trades in PostgreSQL.
type TradeRepository struct {
	pool *pgxpool.Pool
}

// NewTradeRepository takes ownership of pool and creates the trades table if needed.
func NewTradeRepository(ctx context.Context, pool *pgxpool.Pool) (*TradeRepository, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &TradeRepository{pool: pool}, nil
}

// InsertMany sends every row in one batch inside a transaction.
func (r *TradeRepository) InsertMany(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", models.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(
			`INSERT INTO trades (utc_time, operation, market, base_coin, quote_coin, amount, price)
			 VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric)`,
			t.UTCTime.UTC(), string(t.Operation), t.Market, t.BaseCoin, t.QuoteCoin,
			t.Amount.String(), t.Price.String(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range trades {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("%w: insert trade %d: %v", models.ErrStorage, i, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("%w: close batch: %v", models.ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", models.ErrStorage, err)
	}

	return len(trades), nil
}

func (r *TradeRepository) FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT utc_time, operation, market, base_coin, quote_coin, amount::text, price::text
		 FROM trades
		 WHERE utc_time <= $1`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query trades: %v", models.ErrRetrieval, err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var (
			t             models.Trade
			op            string
			amount, price string
		)
		if err := rows.Scan(&t.UTCTime, &op, &t.Market, &t.BaseCoin, &t.QuoteCoin, &amount, &price); err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", models.ErrRetrieval, err)
		}
		t.UTCTime = t.UTCTime.UTC()
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count trades: %v", models.ErrRetrieval, err)
	}
	return n, nil
}

func (r *TradeRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *TradeRepository) Close() error {
	r.pool.Close()
	return nil
}
