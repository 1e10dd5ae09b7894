package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-api/internal/models"
	"trades-api/internal/repositories"
)

var _ repositories.TradeRepository = (*TradeRepository)(nil)

// Runs only against a disposable database named by POSTGRES_TEST_DSN.
func TestTradeRepository_Integration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := Connect(dsn, 2)
	require.NoError(t, err)

	repo, err := NewTradeRepository(ctx, pool)
	require.NoError(t, err)
	defer repo.Close()

	_, err = pool.Exec(ctx, `TRUNCATE trades`)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	n, err := repo.InsertMany(ctx, []models.Trade{
		{
			UTCTime: at, Operation: models.OperationBuy, Market: "BTC/USDT", BaseCoin: "BTC", QuoteCoin: "USDT",
			Amount: decimal.RequireFromString("0.5"), Price: decimal.RequireFromString("61000.25"),
		},
		{
			UTCTime: at.Add(time.Hour), Operation: models.OperationSell, Market: "BTC/USDT", BaseCoin: "BTC", QuoteCoin: "USDT",
			Amount: decimal.RequireFromString("0.2"), Price: decimal.RequireFromString("61100"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := repo.FindUpTo(ctx, at)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].UTCTime.Equal(at))
	assert.True(t, decimal.RequireFromString("0.5").Equal(found[0].Amount))
	assert.True(t, decimal.RequireFromString("61000.25").Equal(found[0].Price))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
