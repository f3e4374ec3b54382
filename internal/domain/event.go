package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is an append-only record of a trade lifecycle step.
// Corresponds to the trade_events analytics table.
type TradeEvent struct {
	TradeID   string
	Pair      string
	Kind      string
	Rate      decimal.Decimal
	Amount    decimal.Decimal
	Profit    decimal.Decimal // fraction, zero unless a sell is involved
	Reason    string
	Timestamp time.Time
}

// Trade event kinds
const (
	EventKindBuyPlaced          = "BUY_PLACED"
	EventKindBuyFilled          = "BUY_FILLED"
	EventKindBuyCancelled       = "BUY_CANCELLED"
	EventKindBuySettledPartial  = "BUY_SETTLED_PARTIAL"
	EventKindSellPlaced         = "SELL_PLACED"
	EventKindSellFilled         = "SELL_FILLED"
	EventKindSellCancelled      = "SELL_CANCELLED"
	EventKindSellPartialSettled = "SELL_PARTIAL_SETTLED"
	EventKindPairBlacklisted    = "PAIR_BLACKLISTED"
)
