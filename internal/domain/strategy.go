package domain

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// ROIEntry is one row of the minimal ROI table: after Minutes have elapsed
// since opening, a profit above Profit triggers a sell.
type ROIEntry struct {
	Minutes int64
	Profit  decimal.Decimal
}

// ROITable is kept sorted by Minutes ascending.
type ROITable []ROIEntry

// NewROITable builds a sorted table from a minutes->profit mapping.
// Keys are minute counts encoded as strings, as in JSON config files.
func NewROITable(m map[string]float64) (ROITable, error) {
	table := make(ROITable, 0, len(m))
	for k, v := range m {
		minutes, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("roi key %q: %w", k, err)
		}
		if minutes < 0 {
			return nil, fmt.Errorf("roi key %q: negative duration", k)
		}
		table = append(table, ROIEntry{Minutes: minutes, Profit: decimal.NewFromFloat(v)})
	}
	table.sort()
	return table, nil
}

func (t ROITable) sort() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].Minutes < t[j].Minutes })
}

// Exit reason codes
const (
	ExitReasonStoploss   = "STOPLOSS"
	ExitReasonROI        = "ROI"
	ExitReasonSellSignal = "SELL_SIGNAL"
)

// StrategyConfig selects a strategy and its optional overrides.
type StrategyConfig struct {
	Name           string             // "default" | "base" | "stochastic" | "rohit" | "baudbox"
	TickerInterval int                // candle minutes, 0 = strategy default
	MinimalROI     map[string]float64 // nil = strategy default
	Stoploss       *float64           // nil = strategy default
}

// Strategy name constants
const (
	StrategyDefault    = "default"
	StrategyBase       = "base"
	StrategyStochastic = "stochastic"
	StrategyRohit      = "rohit"
	StrategyBaudbox    = "baudbox"
)
