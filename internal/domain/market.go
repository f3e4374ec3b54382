package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is the current top of book and last trade price of a pair.
type Ticker struct {
	Ask  decimal.Decimal
	Bid  decimal.Decimal
	Last decimal.Decimal
}

// Candle is one OHLCV bar of ticker history.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// MarketSummary is the 24h volume summary of a pair.
type MarketSummary struct {
	Pair        string
	Base        string
	Quote       string
	BaseVolume  decimal.Decimal
	QuoteVolume decimal.Decimal
}

// PairHealth reports whether a pair is currently tradable.
type PairHealth struct {
	Pair   string
	Active bool
	Notice string // reason when inactive
}

// OrderType identifies the side of a limit order.
type OrderType string

// Order types
const (
	OrderTypeLimitBuy  OrderType = "LIMIT_BUY"
	OrderTypeLimitSell OrderType = "LIMIT_SELL"
)

// Order is the exchange-side view of a placed order.
type Order struct {
	ID        string
	Pair      string
	Type      OrderType
	OpenedAt  time.Time
	Price     decimal.Decimal // average fill price when known, else limit price
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Closed    bool // no longer working on the exchange (filled or cancelled)
}

// Filled returns the executed quantity.
func (o *Order) Filled() decimal.Decimal {
	return o.Amount.Sub(o.Remaining)
}

// Unfilled reports whether nothing has been executed.
func (o *Order) Unfilled() bool {
	return o.Remaining.Equal(o.Amount)
}

// FullyFilled reports whether the whole amount has been executed. An order
// of zero amount never counts as filled.
func (o *Order) FullyFilled() bool {
	return o.Amount.IsPositive() && o.Remaining.IsZero()
}

// Signal is the buy/sell decision for a pair.
type Signal struct {
	Buy  bool
	Sell bool
}

// NoSignal is returned when data is missing, stale or malformed.
var NoSignal = Signal{}

// IsEntry reports whether the signal asks to open a position.
func (s Signal) IsEntry() bool {
	return s.Buy && !s.Sell
}

// IsExit reports whether the signal asks to close a position.
func (s Signal) IsExit() bool {
	return s.Sell && !s.Buy
}
