// Package exchange defines the port the bot uses to talk to a spot exchange.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Exchange is a single spot exchange account.
// Order lookups carry the pair because order ids are scoped per symbol.
type Exchange interface {
	// Name returns the exchange identifier stored on trades.
	Name() string

	GetTicker(ctx context.Context, pair string) (domain.Ticker, error)

	// GetTickerHistory returns candles of the given interval in minutes, oldest first.
	// A nil slice means the exchange has no history for the pair.
	GetTickerHistory(ctx context.Context, pair string, intervalMinutes int) ([]domain.Candle, error)

	GetMarketSummaries(ctx context.Context) ([]domain.MarketSummary, error)
	GetWalletHealth(ctx context.Context) ([]domain.PairHealth, error)

	// Buy places a limit buy and returns the order id.
	Buy(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error)

	// Sell places a limit sell and returns the order id.
	Sell(ctx context.Context, pair string, rate, amount decimal.Decimal) (string, error)

	GetOrder(ctx context.Context, pair, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, pair, orderID string) error

	// GetBalance returns the free balance of currency.
	GetBalance(ctx context.Context, currency string) (decimal.Decimal, error)

	// GetFee returns the maker fee as a fraction.
	GetFee(ctx context.Context) (decimal.Decimal, error)
}
