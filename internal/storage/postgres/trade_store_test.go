package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/storage"
)

func createTestTrade(pair string, openedAt time.Time, orderID string) *domain.TradeRecord {
	return domain.NewTradeRecord(pair, "binance",
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.0025"),
		orderID, openedAt)
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("ETHBTC", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "order-1")

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, trade.ID)
	require.NoError(t, err)

	assert.Equal(t, trade.ID, retrieved.ID)
	assert.Equal(t, trade.Pair, retrieved.Pair)
	assert.Equal(t, trade.Exchange, retrieved.Exchange)
	assert.True(t, retrieved.IsOpen)
	assert.True(t, trade.Amount.Equal(retrieved.Amount))
	assert.True(t, trade.StakeAmount.Equal(retrieved.StakeAmount))
	assert.True(t, trade.Fee.Equal(retrieved.Fee))
	assert.True(t, trade.OpenRate.Equal(retrieved.OpenRate))
	assert.True(t, trade.OpenDate.Equal(retrieved.OpenDate))
	assert.False(t, retrieved.CloseRate.Valid)
	assert.False(t, retrieved.CloseProfit.Valid)
	assert.Nil(t, retrieved.CloseDate)
	assert.Equal(t, "order-1", retrieved.PendingOrderID())
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("ETHBTC", time.Now(), "")
	require.NoError(t, store.Insert(ctx, trade))

	err := store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_NotFound(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewTradeStore(pool)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Update(ctx, createTestTrade("ETHBTC", time.Now(), ""))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_CloseRoundTrip(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("ETHBTC", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "")
	require.NoError(t, store.Insert(ctx, trade))

	closedAt := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	require.NoError(t, trade.Close(decimal.RequireFromString("0.012"), closedAt))
	require.NoError(t, store.Update(ctx, trade))

	retrieved, err := store.GetByID(ctx, trade.ID)
	require.NoError(t, err)

	assert.False(t, retrieved.IsOpen)
	require.True(t, retrieved.CloseRate.Valid)
	assert.True(t, decimal.RequireFromString("0.012").Equal(retrieved.CloseRate.Decimal))
	require.True(t, retrieved.CloseProfit.Valid)
	assert.True(t, trade.CloseProfit.Decimal.Equal(retrieved.CloseProfit.Decimal))
	require.NotNil(t, retrieved.CloseDate)
	assert.True(t, closedAt.Equal(*retrieved.CloseDate))

	closed, err := store.GetClosed(ctx, closedAt.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ID, closed[0].ID)

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestTradeStore_OpenAndPendingQueries(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewTradeStore(pool)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pending := createTestTrade("ETHBTC", base.Add(2*time.Hour), "order-9")
	plain := createTestTrade("LTCBTC", base.Add(time.Hour), "")

	require.NoError(t, store.Insert(ctx, pending))
	require.NoError(t, store.Insert(ctx, plain))

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "LTCBTC", open[0].Pair)
	assert.Equal(t, "ETHBTC", open[1].Pair)

	withOrders, err := store.GetPendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, withOrders, 1)
	assert.Equal(t, pending.ID, withOrders[0].ID)

	require.NoError(t, store.Delete(ctx, pending.ID))

	withOrders, err = store.GetPendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, withOrders)

	assert.NoError(t, store.Flush(ctx))
}
