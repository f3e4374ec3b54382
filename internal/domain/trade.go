package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeRecord is the durable state of one position.
// Corresponds to the trades table.
type TradeRecord struct {
	ID       string // uuid
	Pair     string // exchange trading pair, e.g. ETHBTC
	Exchange string // exchange name

	IsOpen      bool
	Amount      decimal.Decimal // base-currency quantity
	StakeAmount decimal.Decimal // quote-currency committed
	Fee         decimal.Decimal // fraction charged per leg

	OpenRate  decimal.Decimal
	OpenDate  time.Time
	CloseRate decimal.NullDecimal
	CloseDate *time.Time

	// CloseProfit is the realised profit fraction once the trade is closed.
	CloseProfit decimal.NullDecimal

	// OpenOrderID is set exactly while an order is outstanding on the exchange.
	OpenOrderID *string
}

// Trade validation errors
var (
	ErrMissingPair    = errors.New("trade pair is required")
	ErrInvalidAmount  = errors.New("trade amount must be positive")
	ErrInvalidRate    = errors.New("trade open rate must be positive")
	ErrClosedTrade    = errors.New("trade is already closed")
	ErrNoPendingOrder = errors.New("trade has no pending order")
)

// NewTradeRecord creates an open trade for a freshly placed buy order.
// The fee is not deducted from the amount; CalcProfit charges it on both legs.
func NewTradeRecord(pair, exchange string, stake, amount, rate, fee decimal.Decimal, orderID string, now time.Time) *TradeRecord {
	t := &TradeRecord{
		ID:          uuid.NewString(),
		Pair:        pair,
		Exchange:    exchange,
		IsOpen:      true,
		Amount:      amount,
		StakeAmount: stake,
		Fee:         fee,
		OpenRate:    rate,
		OpenDate:    now.UTC(),
	}
	if orderID != "" {
		t.OpenOrderID = &orderID
	}
	return t
}

// Validate checks the structural invariants of a trade.
func (t *TradeRecord) Validate() error {
	if t.Pair == "" {
		return ErrMissingPair
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.OpenRate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}

// HasPendingOrder reports whether an exchange order is outstanding.
func (t *TradeRecord) HasPendingOrder() bool {
	return t.OpenOrderID != nil && *t.OpenOrderID != ""
}

// PendingOrderID returns the outstanding order id or "".
func (t *TradeRecord) PendingOrderID() string {
	if t.OpenOrderID == nil {
		return ""
	}
	return *t.OpenOrderID
}

// SetPendingOrder records an outstanding exchange order.
func (t *TradeRecord) SetPendingOrder(orderID string) {
	t.OpenOrderID = &orderID
}

// ClearPendingOrder forgets the outstanding order without touching the position.
func (t *TradeRecord) ClearPendingOrder() {
	t.OpenOrderID = nil
}

// OpenCost is the quote amount paid including the buy-side fee.
func (t *TradeRecord) OpenCost() decimal.Decimal {
	one := decimal.NewFromInt(1)
	return t.Amount.Mul(t.OpenRate).Mul(one.Add(t.Fee))
}

// CloseValue is the quote amount received at rate after the sell-side fee.
func (t *TradeRecord) CloseValue(rate decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return t.Amount.Mul(rate).Mul(one.Sub(t.Fee))
}

// CalcProfit returns the absolute profit in quote currency when selling at rate.
func (t *TradeRecord) CalcProfit(rate decimal.Decimal) decimal.Decimal {
	return t.CloseValue(rate).Sub(t.OpenCost())
}

// CalcProfitPercent returns the profit fraction when selling at rate.
// 0.05 means +5%.
func (t *TradeRecord) CalcProfitPercent(rate decimal.Decimal) decimal.Decimal {
	cost := t.OpenCost()
	if cost.IsZero() {
		return decimal.Zero
	}
	return t.CloseValue(rate).Div(cost).Sub(decimal.NewFromInt(1))
}

// ConfirmBuy applies a filled buy order at rate. The stake follows the
// fill price so that Amount * OpenRate == StakeAmount still holds.
func (t *TradeRecord) ConfirmBuy(rate decimal.Decimal) {
	if rate.IsPositive() {
		t.OpenRate = rate
		t.StakeAmount = t.Amount.Mul(rate)
	}
	t.OpenOrderID = nil
}

// SettlePartialBuy turns a partially filled buy into a normal open position.
func (t *TradeRecord) SettlePartialBuy(filled decimal.Decimal) {
	t.Amount = filled
	t.StakeAmount = filled.Mul(t.OpenRate)
	t.OpenOrderID = nil
}

// Close marks the trade closed at rate. The close fields are always set together.
func (t *TradeRecord) Close(rate decimal.Decimal, now time.Time) error {
	if !t.IsOpen {
		return ErrClosedTrade
	}
	closedAt := now.UTC()
	t.CloseRate = decimal.NewNullDecimal(rate)
	t.CloseProfit = decimal.NewNullDecimal(t.CalcProfitPercent(rate))
	t.CloseDate = &closedAt
	t.IsOpen = false
	t.OpenOrderID = nil
	return nil
}

// ReopenAfterCancelledSell reverts a trade whose sell order was cancelled unfilled.
// This is the only path that clears the close fields.
func (t *TradeRecord) ReopenAfterCancelledSell() {
	t.CloseRate = decimal.NullDecimal{}
	t.CloseProfit = decimal.NullDecimal{}
	t.CloseDate = nil
	t.IsOpen = true
	t.OpenOrderID = nil
}

// ReduceAfterPartialSell keeps the unsold remainder open after a partially
// filled sell was cancelled.
func (t *TradeRecord) ReduceAfterPartialSell(remaining decimal.Decimal) {
	t.Amount = remaining
	t.StakeAmount = remaining.Mul(t.OpenRate)
	t.ReopenAfterCancelledSell()
}

// Clone returns a deep copy.
func (t *TradeRecord) Clone() *TradeRecord {
	c := *t
	if t.CloseDate != nil {
		d := *t.CloseDate
		c.CloseDate = &d
	}
	if t.OpenOrderID != nil {
		id := *t.OpenOrderID
		c.OpenOrderID = &id
	}
	return &c
}
