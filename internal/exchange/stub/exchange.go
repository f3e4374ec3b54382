// Package stub provides a scriptable in-memory exchange.Exchange for tests.
package stub

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
)

// PlacedOrder records a Buy or Sell call.
type PlacedOrder struct {
	ID     string
	Pair   string
	Type   domain.OrderType
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

// Exchange is a scriptable exchange. Set the exported fields before use.
type Exchange struct {
	mu sync.Mutex

	ExchangeName string
	Tickers      map[string]domain.Ticker
	History      map[string][]domain.Candle
	Summaries    []domain.MarketSummary
	Health       []domain.PairHealth
	Balances     map[string]decimal.Decimal
	Fee          decimal.Decimal
	Orders       map[string]*domain.Order

	// Injected failures
	SummariesErr error
	HealthErr    error
	TickerErr    map[string]error
	BuyErr       map[string]error
	SellErr      map[string]error
	OrderErr     map[string]error
	BalanceErr   error

	// Now stamps new orders; defaults to time.Now.
	Now func() time.Time

	// Call records
	SummaryCalls int
	HealthCalls  int
	Placed       []PlacedOrder
	Cancelled    []string

	nextID int
}

// New returns an empty stub named "stub".
func New() *Exchange {
	return &Exchange{
		ExchangeName: "stub",
		Tickers:      make(map[string]domain.Ticker),
		History:      make(map[string][]domain.Candle),
		Balances:     make(map[string]decimal.Decimal),
		Orders:       make(map[string]*domain.Order),
		TickerErr:    make(map[string]error),
		BuyErr:       make(map[string]error),
		SellErr:      make(map[string]error),
		OrderErr:     make(map[string]error),
	}
}

var _ exchange.Exchange = (*Exchange)(nil)

func (e *Exchange) Name() string { return e.ExchangeName }

func (e *Exchange) GetTicker(_ context.Context, pair string) (domain.Ticker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.TickerErr[pair]; err != nil {
		return domain.Ticker{}, err
	}
	t, ok := e.Tickers[pair]
	if !ok {
		return domain.Ticker{}, exchange.Transient("ticker", fmt.Errorf("no ticker for %s", pair))
	}
	return t, nil
}

func (e *Exchange) GetTickerHistory(_ context.Context, pair string, _ int) ([]domain.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.History[pair], nil
}

func (e *Exchange) GetMarketSummaries(_ context.Context) ([]domain.MarketSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.SummaryCalls++
	if e.SummariesErr != nil {
		return nil, e.SummariesErr
	}
	return append([]domain.MarketSummary(nil), e.Summaries...), nil
}

func (e *Exchange) GetWalletHealth(_ context.Context) ([]domain.PairHealth, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.HealthCalls++
	if e.HealthErr != nil {
		return nil, e.HealthErr
	}
	return append([]domain.PairHealth(nil), e.Health...), nil
}

func (e *Exchange) Buy(_ context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	return e.place(pair, domain.OrderTypeLimitBuy, rate, amount, e.BuyErr)
}

func (e *Exchange) Sell(_ context.Context, pair string, rate, amount decimal.Decimal) (string, error) {
	return e.place(pair, domain.OrderTypeLimitSell, rate, amount, e.SellErr)
}

func (e *Exchange) place(pair string, typ domain.OrderType, rate, amount decimal.Decimal, errs map[string]error) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := errs[pair]; err != nil {
		return "", err
	}
	e.nextID++
	id := "order-" + strconv.Itoa(e.nextID)
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	e.Orders[id] = &domain.Order{
		ID:        id,
		Pair:      pair,
		Type:      typ,
		OpenedAt:  now(),
		Price:     rate,
		Amount:    amount,
		Remaining: amount,
	}
	e.Placed = append(e.Placed, PlacedOrder{ID: id, Pair: pair, Type: typ, Rate: rate, Amount: amount})
	return id, nil
}

func (e *Exchange) GetOrder(_ context.Context, _ string, orderID string) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.OrderErr[orderID]; err != nil {
		return nil, err
	}
	o, ok := e.Orders[orderID]
	if !ok {
		return nil, exchange.Transient("get order", fmt.Errorf("unknown order %s", orderID))
	}
	c := *o
	return &c, nil
}

func (e *Exchange) CancelOrder(_ context.Context, _ string, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.Orders[orderID]; ok {
		o.Closed = true
	}
	e.Cancelled = append(e.Cancelled, orderID)
	return nil
}

func (e *Exchange) GetBalance(_ context.Context, currency string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.BalanceErr != nil {
		return decimal.Zero, e.BalanceErr
	}
	return e.Balances[currency], nil
}

func (e *Exchange) GetFee(_ context.Context) (decimal.Decimal, error) {
	return e.Fee, nil
}

// SetOrder installs or replaces an order.
func (e *Exchange) SetOrder(o *domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Orders[o.ID] = o
}

// Fill marks qty of an order as executed.
func (e *Exchange) Fill(orderID string, qty decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.Orders[orderID]
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Closed = true
	}
}
