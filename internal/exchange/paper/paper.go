// Package paper simulates order execution against live market data.
// Orders never reach the exchange; fills happen when the market crosses
// the limit price on a later lookup.
package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
)

// Options configures the paper exchange.
type Options struct {
	Market        exchange.Exchange // source of tickers and market data
	StakeCurrency string
	Wallet        decimal.Decimal // starting stake-currency balance
	Fee           decimal.Decimal // per-leg fee fraction
	Now           func() time.Time
	Logger        *zap.Logger
}

// Exchange is an in-memory account that fills orders from market data.
type Exchange struct {
	market exchange.Exchange
	stake  string
	fee    decimal.Decimal
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orders   map[string]*domain.Order
}

// New creates a paper exchange.
func New(opts Options) *Exchange {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		market:   opts.Market,
		stake:    opts.StakeCurrency,
		fee:      opts.Fee,
		now:      now,
		logger:   logger.Named("paper"),
		balances: map[string]decimal.Decimal{opts.StakeCurrency: opts.Wallet},
		orders:   make(map[string]*domain.Order),
	}
}

var _ exchange.Exchange = (*Exchange)(nil)

// Name reports the underlying market so stored trades stay comparable.
func (p *Exchange) Name() string { return p.market.Name() }

func (p *Exchange) GetTicker(ctx context.Context, pair string) (domain.Ticker, error) {
	return p.market.GetTicker(ctx, pair)
}

func (p *Exchange) GetTickerHistory(ctx context.Context, pair string, intervalMinutes int) ([]domain.Candle, error) {
	return p.market.GetTickerHistory(ctx, pair, intervalMinutes)
}

func (p *Exchange) GetMarketSummaries(ctx context.Context) ([]domain.MarketSummary, error) {
	return p.market.GetMarketSummaries(ctx)
}

func (p *Exchange) GetWalletHealth(ctx context.Context) ([]domain.PairHealth, error) {
	return p.market.GetWalletHealth(ctx)
}

// Buy reserves stake currency and records a working buy order.
func (p *Exchange) Buy(_ context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	if !rate.IsPositive() || !amount.IsPositive() {
		return "", exchange.Rejected(pair, errors.New("non-positive rate or amount"))
	}
	cost := rate.Mul(amount)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.balances[p.stake].LessThan(cost) {
		return "", exchange.Rejected(pair, fmt.Errorf("insufficient %s balance", p.stake))
	}
	p.balances[p.stake] = p.balances[p.stake].Sub(cost)

	return p.addOrder(pair, domain.OrderTypeLimitBuy, rate, amount), nil
}

// Sell reserves base currency and records a working sell order.
func (p *Exchange) Sell(_ context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	if !rate.IsPositive() || !amount.IsPositive() {
		return "", exchange.Rejected(pair, errors.New("non-positive rate or amount"))
	}
	base := p.baseOf(pair)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.balances[base].LessThan(amount) {
		return "", exchange.Rejected(pair, fmt.Errorf("insufficient %s balance", base))
	}
	p.balances[base] = p.balances[base].Sub(amount)

	return p.addOrder(pair, domain.OrderTypeLimitSell, rate, amount), nil
}

func (p *Exchange) addOrder(pair string, typ domain.OrderType, rate, amount decimal.Decimal) string {
	o := &domain.Order{
		ID:        uuid.NewString(),
		Pair:      pair,
		Type:      typ,
		OpenedAt:  p.now().UTC(),
		Price:     rate,
		Amount:    amount,
		Remaining: amount,
	}
	p.orders[o.ID] = o
	p.logger.Info("paper order placed",
		zap.String("id", o.ID),
		zap.String("pair", pair),
		zap.String("type", string(typ)),
		zap.String("rate", rate.String()),
		zap.String("amount", amount.String()),
	)
	return o.ID
}

// GetOrder returns the order, filling it first if the market crossed its price.
func (p *Exchange) GetOrder(ctx context.Context, pair, orderID string) (*domain.Order, error) {
	p.mu.Lock()
	o, ok := p.orders[orderID]
	working := ok && !o.Closed
	p.mu.Unlock()
	if !ok {
		// Paper orders do not survive a restart. Report them as closed
		// without any fill so the trade is not treated as executed.
		p.logger.Warn("unknown paper order", zap.String("id", orderID), zap.String("pair", pair))
		return &domain.Order{ID: orderID, Pair: pair, Closed: true}, nil
	}

	if working {
		ticker, err := p.market.GetTicker(ctx, pair)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.tryFill(o, ticker)
		p.mu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	c := *o
	return &c, nil
}

// tryFill executes o completely when the market trades through its limit.
// Callers hold p.mu.
func (p *Exchange) tryFill(o *domain.Order, t domain.Ticker) {
	if o.Closed {
		return
	}
	one := decimal.NewFromInt(1)
	switch o.Type {
	case domain.OrderTypeLimitBuy:
		if t.Ask.IsPositive() && t.Ask.LessThanOrEqual(o.Price) {
			base := p.baseOf(o.Pair)
			p.balances[base] = p.balances[base].Add(o.Remaining)
			// Fee is charged in quote on top of the reserved cost.
			p.balances[p.stake] = p.balances[p.stake].Sub(o.Remaining.Mul(o.Price).Mul(p.fee))
			o.Remaining = decimal.Zero
			o.Closed = true
		}
	case domain.OrderTypeLimitSell:
		if t.Bid.GreaterThanOrEqual(o.Price) {
			proceeds := o.Remaining.Mul(o.Price).Mul(one.Sub(p.fee))
			p.balances[p.stake] = p.balances[p.stake].Add(proceeds)
			o.Remaining = decimal.Zero
			o.Closed = true
		}
	}
	if o.Closed {
		p.logger.Info("paper order filled", zap.String("id", o.ID), zap.String("pair", o.Pair))
	}
}

// CancelOrder releases the unfilled reservation.
func (p *Exchange) CancelOrder(_ context.Context, pair, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return exchange.Operational("cancel order", fmt.Errorf("unknown paper order %s", orderID))
	}
	if o.Closed {
		return nil
	}

	switch o.Type {
	case domain.OrderTypeLimitBuy:
		p.balances[p.stake] = p.balances[p.stake].Add(o.Remaining.Mul(o.Price))
	case domain.OrderTypeLimitSell:
		base := p.baseOf(pair)
		p.balances[base] = p.balances[base].Add(o.Remaining)
	}
	o.Closed = true
	return nil
}

// GetBalance returns the simulated free balance.
func (p *Exchange) GetBalance(_ context.Context, currency string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[currency], nil
}

// GetFee returns the configured fee.
func (p *Exchange) GetFee(_ context.Context) (decimal.Decimal, error) {
	return p.fee, nil
}

// baseOf strips the stake currency suffix: ETHBTC -> ETH.
func (p *Exchange) baseOf(pair string) string {
	if i := strings.Index(pair, "_"); i >= 0 {
		// BTC_ETH style pairs put the quote first.
		return pair[i+1:]
	}
	return strings.TrimSuffix(pair, p.stake)
}
