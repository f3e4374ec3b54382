package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/observability"
)

// Instrumented records latency and error class of every call to the
// wrapped exchange.
type Instrumented struct {
	inner Exchange
}

// Instrument wraps ex with Prometheus instrumentation.
func Instrument(ex Exchange) *Instrumented {
	return &Instrumented{inner: ex}
}

var _ Exchange = (*Instrumented)(nil)

func track(method string) func(error) {
	start := time.Now()
	return func(err error) {
		observability.RecordExchangeCall(method, time.Since(start).Seconds(), Class(err))
	}
}

func (i *Instrumented) Name() string { return i.inner.Name() }

func (i *Instrumented) GetTicker(ctx context.Context, pair string) (domain.Ticker, error) {
	done := track("get_ticker")
	t, err := i.inner.GetTicker(ctx, pair)
	done(err)
	return t, err
}

func (i *Instrumented) GetTickerHistory(ctx context.Context, pair string, intervalMinutes int) ([]domain.Candle, error) {
	done := track("get_ticker_history")
	c, err := i.inner.GetTickerHistory(ctx, pair, intervalMinutes)
	done(err)
	return c, err
}

func (i *Instrumented) GetMarketSummaries(ctx context.Context) ([]domain.MarketSummary, error) {
	done := track("get_market_summaries")
	s, err := i.inner.GetMarketSummaries(ctx)
	done(err)
	return s, err
}

func (i *Instrumented) GetWalletHealth(ctx context.Context) ([]domain.PairHealth, error) {
	done := track("get_wallet_health")
	h, err := i.inner.GetWalletHealth(ctx)
	done(err)
	return h, err
}

func (i *Instrumented) Buy(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	done := track("buy")
	id, err := i.inner.Buy(ctx, pair, rate, amount)
	done(err)
	return id, err
}

func (i *Instrumented) Sell(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	done := track("sell")
	id, err := i.inner.Sell(ctx, pair, rate, amount)
	done(err)
	return id, err
}

func (i *Instrumented) GetOrder(ctx context.Context, pair, orderID string) (*domain.Order, error) {
	done := track("get_order")
	o, err := i.inner.GetOrder(ctx, pair, orderID)
	done(err)
	return o, err
}

func (i *Instrumented) CancelOrder(ctx context.Context, pair, orderID string) error {
	done := track("cancel_order")
	err := i.inner.CancelOrder(ctx, pair, orderID)
	done(err)
	return err
}

func (i *Instrumented) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	done := track("get_balance")
	b, err := i.inner.GetBalance(ctx, currency)
	done(err)
	return b, err
}

func (i *Instrumented) GetFee(ctx context.Context) (decimal.Decimal, error) {
	done := track("get_fee")
	f, err := i.inner.GetFee(ctx)
	done(err)
	return f, err
}
