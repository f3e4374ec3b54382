package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
	"github.com/ermakus/freqtrade/internal/exchange/stub"
	"github.com/ermakus/freqtrade/internal/storage"
	"github.com/ermakus/freqtrade/internal/storage/memory"
	"github.com/ermakus/freqtrade/internal/trading"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Send(_ context.Context, msg string) { n.messages = append(n.messages, msg) }

type fixture struct {
	ex       *stub.Exchange
	store    *memory.TradeStore
	events   *memory.TradeEventStore
	notifier *recordingNotifier
}

func newFixture() *fixture {
	return &fixture{
		ex:       stub.New(),
		store:    memory.NewTradeStore(),
		events:   memory.NewTradeEventStore(),
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) reconciler(policy PartialSellPolicy) *Reconciler {
	return New(Options{
		Exchange:    f.ex,
		Store:       f.store,
		Journal:     trading.NewJournal(f.events, nil),
		Notifier:    f.notifier,
		PartialSell: policy,
		Now:         func() time.Time { return now },
	})
}

// pending stores a trade with an outstanding order of typ opened age ago.
func (f *fixture) pending(t *testing.T, pair string, typ domain.OrderType, age time.Duration, remaining string) *domain.TradeRecord {
	t.Helper()
	orderID := "ord-" + pair
	tr := domain.NewTradeRecord(pair, "stub", d("10"), d("100"), d("0.1"), d("0.001"), orderID, now.Add(-2*time.Hour))
	require.NoError(t, f.store.Insert(context.Background(), tr))
	f.ex.SetOrder(&domain.Order{
		ID:        orderID,
		Pair:      pair,
		Type:      typ,
		OpenedAt:  now.Add(-age),
		Price:     d("0.1"),
		Amount:    d("100"),
		Remaining: d(remaining),
	})
	return tr
}

func TestSweep_UnfilledBuyDeletesTrade(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, 11*time.Minute, "100")

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"ord-AAABTC"}, f.ex.Cancelled)
	_, err = f.store.GetByID(context.Background(), tr.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, []string{"*Timeout:* Unfilled buy order for AAABTC cancelled"}, f.notifier.messages)

	events, _ := f.events.GetByTradeID(context.Background(), tr.ID)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventKindBuyCancelled, events[0].Kind)
}

func TestSweep_PartialBuySettlesAtFilledAmount(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, 11*time.Minute, "40")

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settled)
	assert.Empty(t, f.ex.Cancelled, "partial buys are not cancelled")

	got, err := f.store.GetByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, d("60").Equal(got.Amount))
	assert.True(t, d("6").Equal(got.StakeAmount))
	require.Len(t, f.notifier.messages, 1)
}

func TestSweep_UnfilledSellReopensTrade(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitSell, 11*time.Minute, "100")
	closedAt := now.Add(-time.Minute)
	tr.CloseRate = decimal.NewNullDecimal(d("0.11"))
	tr.CloseProfit = decimal.NewNullDecimal(d("0.08"))
	tr.CloseDate = &closedAt
	tr.IsOpen = false
	require.NoError(t, f.store.Update(context.Background(), tr))

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reopened)
	assert.Equal(t, []string{"ord-AAABTC"}, f.ex.Cancelled)

	got, err := f.store.GetByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.False(t, got.CloseRate.Valid)
	assert.False(t, got.CloseProfit.Valid)
	assert.Nil(t, got.CloseDate)
	assert.True(t, d("100").Equal(got.Amount))
}

func TestSweep_PartialSellLeftWorkingByDefault(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitSell, 11*time.Minute, "30")

	res, err := f.reconciler("").Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Untouched)
	assert.Empty(t, f.ex.Cancelled)
	assert.Empty(t, f.notifier.messages)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.Equal(t, "ord-AAABTC", got.PendingOrderID())
}

func TestSweep_PartialSellCancelPolicy(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitSell, 11*time.Minute, "30")

	res, err := f.reconciler(PartialSellCancel).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reduced)
	assert.Equal(t, []string{"ord-AAABTC"}, f.ex.Cancelled)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.True(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, d("30").Equal(got.Amount))
	assert.True(t, d("3").Equal(got.StakeAmount))

	events, _ := f.events.GetByTradeID(context.Background(), tr.ID)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventKindSellPartialSettled, events[0].Kind)
	assert.True(t, d("70").Equal(events[0].Amount))
}

func TestSweep_ExpiredButFilledSellClosesTrade(t *testing.T) {
	for _, policy := range []PartialSellPolicy{PartialSellLeave, PartialSellCancel} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture()
			tr := f.pending(t, "AAABTC", domain.OrderTypeLimitSell, 11*time.Minute, "100")
			f.ex.Fill("ord-AAABTC", d("100"))
			f.ex.Orders["ord-AAABTC"].Price = d("0.11")

			res, err := f.reconciler(policy).Sweep(context.Background(), 10*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Filled)
			assert.Zero(t, res.Reduced)
			assert.Zero(t, res.Untouched)
			assert.Empty(t, f.ex.Cancelled)

			got, _ := f.store.GetByID(context.Background(), tr.ID)
			assert.False(t, got.IsOpen)
			assert.False(t, got.HasPendingOrder())
			assert.True(t, d("100").Equal(got.Amount))
			assert.True(t, got.CloseRate.Valid)
			assert.True(t, d("0.11").Equal(got.CloseRate.Decimal))
			require.NotNil(t, got.CloseDate)

			events, _ := f.events.GetByTradeID(context.Background(), tr.ID)
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventKindSellFilled, events[0].Kind)
		})
	}
}

func TestSweep_ExpiredButFilledBuyConfirmsAtFillPrice(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, 11*time.Minute, "100")
	f.ex.Fill("ord-AAABTC", d("100"))
	f.ex.Orders["ord-AAABTC"].Price = d("0.098")

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	assert.Zero(t, res.Settled)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.True(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, d("0.098").Equal(got.OpenRate))
	assert.True(t, d("9.8").Equal(got.StakeAmount))
}

func TestSweep_DropsLostOrder(t *testing.T) {
	f := newFixture()
	tr := domain.NewTradeRecord("AAABTC", "paper", d("10"), d("100"), d("0.1"), d("0.001"), "lost-1", now.Add(-2*time.Hour))
	require.NoError(t, f.store.Insert(context.Background(), tr))
	f.ex.SetOrder(&domain.Order{ID: "lost-1", Pair: "AAABTC", Closed: true})

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, res.Failed)
	assert.Empty(t, f.ex.Cancelled)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.True(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, d("100").Equal(got.Amount))
}

func TestSweep_IgnoresFreshOrders(t *testing.T) {
	f := newFixture()
	f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, 10*time.Minute, "100")

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Deleted)
	assert.Empty(t, f.ex.Cancelled)
}

func TestSweep_LookupFailureSkipsOnlyThatTrade(t *testing.T) {
	f := newFixture()
	f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, time.Hour, "100")
	f.pending(t, "BBBBTC", domain.OrderTypeLimitBuy, time.Hour, "100")
	f.ex.OrderErr["ord-AAABTC"] = exchange.Transient("get order", errors.New("timeout"))

	res, err := f.reconciler(PartialSellLeave).Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"ord-BBBBTC"}, f.ex.Cancelled)
}

func TestSync_BuyFilled(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, time.Minute, "100")
	f.ex.Fill("ord-AAABTC", d("100"))
	f.ex.Orders["ord-AAABTC"].Price = d("0.099")

	out, err := f.reconciler(PartialSellLeave).Sync(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, SyncBuyFilled, out)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, d("0.099").Equal(got.OpenRate))
	assert.True(t, d("9.9").Equal(got.StakeAmount))
	assert.True(t, got.IsOpen)
}

func TestSync_SellFilledClosesTrade(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitSell, time.Minute, "100")
	f.ex.Fill("ord-AAABTC", d("100"))
	f.ex.Orders["ord-AAABTC"].Price = d("0.11")

	out, err := f.reconciler(PartialSellLeave).Sync(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, SyncSellFilled, out)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.False(t, got.IsOpen)
	assert.False(t, got.HasPendingOrder())
	assert.True(t, got.CloseRate.Valid)
	assert.True(t, got.CloseProfit.Decimal.IsPositive())
	require.NotNil(t, got.CloseDate)
	assert.Equal(t, now, *got.CloseDate)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "profit")
}

func TestSync_WorkingOrderUntouched(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, time.Minute, "50")

	out, err := f.reconciler(PartialSellLeave).Sync(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, SyncPending, out)

	got, _ := f.store.GetByID(context.Background(), tr.ID)
	assert.Equal(t, "ord-AAABTC", got.PendingOrderID())
}

func TestSync_LookupErrorPropagates(t *testing.T) {
	f := newFixture()
	tr := f.pending(t, "AAABTC", domain.OrderTypeLimitBuy, time.Minute, "100")
	f.ex.OrderErr["ord-AAABTC"] = exchange.Operational("get order", errors.New("invalid key"))

	_, err := f.reconciler(PartialSellLeave).Sync(context.Background(), tr)
	assert.ErrorIs(t, err, exchange.ErrOperational)
}

func TestParsePartialSellPolicy(t *testing.T) {
	p, err := ParsePartialSellPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PartialSellLeave, p)

	p, err = ParsePartialSellPolicy("cancel")
	require.NoError(t, err)
	assert.Equal(t, PartialSellCancel, p)

	_, err = ParsePartialSellPolicy("panic")
	assert.Error(t, err)
}
