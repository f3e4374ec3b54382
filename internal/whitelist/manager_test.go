package whitelist

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
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func summary(pair, quote string, quoteVol, baseVol int64) domain.MarketSummary {
	return domain.MarketSummary{
		Pair:        pair,
		Quote:       quote,
		QuoteVolume: decimal.NewFromInt(quoteVol),
		BaseVolume:  decimal.NewFromInt(baseVol),
	}
}

func healthy(pairs ...string) []domain.PairHealth {
	out := make([]domain.PairHealth, len(pairs))
	for i, p := range pairs {
		out[i] = domain.PairHealth{Pair: p, Active: true}
	}
	return out
}

func newManager(t *testing.T, ex *stub.Exchange, c *clock, opts Options) *Manager {
	t.Helper()
	opts.Exchange = ex
	opts.StakeCurrency = "BTC"
	opts.Now = c.Now
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

func TestRefresh_StaticList(t *testing.T) {
	ex := stub.New()
	ex.Health = healthy("ETHBTC", "LTCBTC", "XRPBTC")
	m := newManager(t, ex, &clock{}, Options{})

	got, err := m.Refresh(context.Background(), []string{"ETHBTC", "LTCBTC", "XRPBTC"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHBTC", "LTCBTC", "XRPBTC"}, got)
	assert.Zero(t, ex.SummaryCalls)
}

func TestRefresh_DropsInactiveUnknownAndBlacklisted(t *testing.T) {
	ex := stub.New()
	ex.Health = []domain.PairHealth{
		{Pair: "ETHBTC", Active: true},
		{Pair: "LTCBTC", Active: false, Notice: "delisting"},
		{Pair: "XRPBTC", Active: true},
		{Pair: "NEOBTC", Active: true},
	}
	m := newManager(t, ex, &clock{}, Options{Blacklist: []string{"XRPBTC"}})

	got, err := m.Refresh(context.Background(), []string{"ETHBTC", "LTCBTC", "XRPBTC", "DOGEBTC", "NEOBTC"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHBTC", "NEOBTC"}, got)
}

func TestRefresh_DynamicSortsByVolume(t *testing.T) {
	ex := stub.New()
	ex.Summaries = []domain.MarketSummary{
		summary("ETHBTC", "BTC", 10, 500),
		summary("LTCBTC", "BTC", 30, 100),
		summary("BTCUSDT", "USDT", 1000, 1),
		summary("XRPBTC", "BTC", 30, 900),
		summary("NEOBTC", "BTC", 20, 50),
	}
	ex.Health = healthy("ETHBTC", "LTCBTC", "XRPBTC", "NEOBTC", "BTCUSDT")
	m := newManager(t, ex, &clock{}, Options{})

	got, err := m.Refresh(context.Background(), []string{"IGNORED"}, 3)
	require.NoError(t, err)
	// ties keep input order
	assert.Equal(t, []string{"LTCBTC", "XRPBTC", "NEOBTC"}, got)
}

func TestRefresh_DynamicBaseVolumeKey(t *testing.T) {
	ex := stub.New()
	ex.Summaries = []domain.MarketSummary{
		summary("ETHBTC", "BTC", 10, 500),
		summary("LTCBTC", "BTC", 30, 100),
		summary("XRPBTC", "BTC", 30, 900),
	}
	ex.Health = healthy("ETHBTC", "LTCBTC", "XRPBTC")
	m := newManager(t, ex, &clock{}, Options{VolumeKey: VolumeKeyBase})

	got, err := m.Refresh(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"XRPBTC", "ETHBTC"}, got)
}

func TestRefresh_DynamicCachedWithinTTL(t *testing.T) {
	ex := stub.New()
	ex.Summaries = []domain.MarketSummary{summary("ETHBTC", "BTC", 10, 1)}
	ex.Health = healthy("ETHBTC", "LTCBTC")
	c := &clock{t: time.Unix(0, 0)}
	m := newManager(t, ex, c, Options{TTL: time.Minute})
	ctx := context.Background()

	_, err := m.Refresh(ctx, nil, 5)
	require.NoError(t, err)

	ex.Summaries = []domain.MarketSummary{summary("LTCBTC", "BTC", 10, 1)}
	c.t = c.t.Add(59 * time.Second)
	got, err := m.Refresh(ctx, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHBTC"}, got)
	assert.Equal(t, 1, ex.SummaryCalls)

	c.t = c.t.Add(time.Second)
	got, err = m.Refresh(ctx, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"LTCBTC"}, got)
	assert.Equal(t, 2, ex.SummaryCalls)
}

func TestRefresh_CacheKeyedByCount(t *testing.T) {
	ex := stub.New()
	ex.Summaries = []domain.MarketSummary{summary("ETHBTC", "BTC", 10, 1), summary("LTCBTC", "BTC", 5, 1)}
	ex.Health = healthy("ETHBTC", "LTCBTC")
	m := newManager(t, ex, &clock{}, Options{})
	ctx := context.Background()

	got, _ := m.Refresh(ctx, nil, 1)
	assert.Equal(t, []string{"ETHBTC"}, got)
	got, _ = m.Refresh(ctx, nil, 2)
	assert.Equal(t, []string{"ETHBTC", "LTCBTC"}, got)
	assert.Equal(t, 2, ex.SummaryCalls)
}

func TestRefresh_ExchangeFailurePropagates(t *testing.T) {
	ex := stub.New()
	ex.SummariesErr = exchange.Transient("summaries", errors.New("timeout"))
	m := newManager(t, ex, &clock{}, Options{})

	_, err := m.Refresh(context.Background(), nil, 3)
	assert.ErrorIs(t, err, exchange.ErrTransient)

	ex.SummariesErr = nil
	ex.HealthErr = exchange.Transient("health", errors.New("timeout"))
	_, err = m.Refresh(context.Background(), []string{"ETHBTC"}, 0)
	assert.ErrorIs(t, err, exchange.ErrTransient)
}

func TestRefresh_NeverReturnsInactiveOrBlacklisted(t *testing.T) {
	pairs := []string{"AAABTC", "BBBBTC", "CCCBTC", "DDDBTC", "EEEBTC", "FFFBTC"}
	for mask := 0; mask < 1<<len(pairs); mask++ {
		ex := stub.New()
		var inactive []string
		for i, p := range pairs {
			active := mask&(1<<i) == 0
			ex.Health = append(ex.Health, domain.PairHealth{Pair: p, Active: active})
			if !active {
				inactive = append(inactive, p)
			}
		}
		m := newManager(t, ex, &clock{}, Options{Blacklist: []string{"CCCBTC"}})

		got, err := m.Refresh(context.Background(), pairs, 0)
		require.NoError(t, err)
		assert.NotContains(t, got, "CCCBTC")
		for _, p := range inactive {
			assert.NotContains(t, got, p)
		}
	}
}

func TestNew_UnknownVolumeKey(t *testing.T) {
	_, err := New(Options{VolumeKey: "trades"})
	assert.Error(t, err)
}
