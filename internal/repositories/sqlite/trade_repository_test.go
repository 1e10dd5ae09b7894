package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-api/internal/models"
	"trades-api/internal/repositories"
	"trades-api/internal/repositories/sqlite"
)

var _ repositories.TradeRepository = (*sqlite.TradeRepository)(nil)

func newRepo(t *testing.T) *sqlite.TradeRepository {
	t.Helper()
	repo, err := sqlite.NewTradeRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func makeTrade(at time.Time, op models.Operation, amount, price string) models.Trade {
	return models.Trade{
		UTCTime:   at,
		Operation: op,
		Market:    "BTC/USDT",
		BaseCoin:  "BTC",
		QuoteCoin: "USDT",
		Amount:    decimal.RequireFromString(amount),
		Price:     decimal.RequireFromString(price),
	}
}

func TestTradeRepository_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	original := makeTrade(at, models.OperationBuy, "0.123456789012345678", "61234.5")
	n, err := repo.InsertMany(ctx, []models.Trade{original})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err := repo.FindUpTo(ctx, at)
	require.NoError(t, err)
	require.Len(t, found, 1)

	got := found[0]
	assert.True(t, got.UTCTime.Equal(at))
	assert.Equal(t, time.UTC, got.UTCTime.Location())
	assert.Equal(t, original.Operation, got.Operation)
	assert.Equal(t, original.Market, got.Market)
	assert.Equal(t, original.BaseCoin, got.BaseCoin)
	assert.Equal(t, original.QuoteCoin, got.QuoteCoin)
	assert.True(t, original.Amount.Equal(got.Amount), "amount %s", got.Amount)
	assert.True(t, original.Price.Equal(got.Price), "price %s", got.Price)
}

func TestTradeRepository_FindUpTo(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.InsertMany(ctx, []models.Trade{
		makeTrade(base, models.OperationBuy, "1", "1"),
		makeTrade(base.Add(time.Hour), models.OperationSell, "2", "1"),
		makeTrade(base.Add(2*time.Hour), models.OperationBuy, "3", "1"),
	})
	require.NoError(t, err)

	t.Run("cutoff is inclusive", func(t *testing.T) {
		found, err := repo.FindUpTo(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("before first trade", func(t *testing.T) {
		found, err := repo.FindUpTo(ctx, base.Add(-time.Minute))
		require.NoError(t, err)
		assert.NotNil(t, found)
		assert.Empty(t, found)
	})

	t.Run("cutoff in another zone is compared as an instant", func(t *testing.T) {
		zone := time.FixedZone("UTC+2", 2*60*60)
		found, err := repo.FindUpTo(ctx, base.Add(time.Hour).In(zone))
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func TestTradeRepository_InsertEmpty(t *testing.T) {
	repo := newRepo(t)

	n, err := repo.InsertMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTradeRepository_Count(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.InsertMany(ctx, []models.Trade{
		makeTrade(at, models.OperationBuy, "1", "1"),
		makeTrade(at, models.OperationBuy, "1", "1"),
	})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, repo.Ping(ctx))
}

func TestTradeRepository_ClosedStore(t *testing.T) {
	repo, err := sqlite.NewTradeRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.FindUpTo(context.Background(), time.Now())
	assert.True(t, errors.Is(err, models.ErrRetrieval))

	_, err = repo.InsertMany(context.Background(), []models.Trade{
		makeTrade(time.Now(), models.OperationBuy, "1", "1"),
	})
	assert.True(t, errors.Is(err, models.ErrStorage))
}
