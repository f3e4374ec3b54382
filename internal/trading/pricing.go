package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// TargetBid returns the entry price between ask and last. When ask is below
// last the ask is taken; otherwise the price moves from ask towards last by
// balance, a weight in [0, 1].
func TargetBid(t domain.Ticker, balance decimal.Decimal) decimal.Decimal {
	if t.Ask.LessThan(t.Last) {
		return t.Ask
	}
	return t.Ask.Add(balance.Mul(t.Last.Sub(t.Ask)))
}

// MinROIReached decides whether trade should be sold at rate. The stoploss
// is checked first; a zero stoploss is disabled. The ROI table is scanned in
// ascending order of minutes and the first entry whose duration has elapsed
// and whose threshold is exceeded triggers.
func MinROIReached(t *domain.TradeRecord, rate decimal.Decimal, now time.Time, roi domain.ROITable, stoploss decimal.Decimal) (string, bool) {
	profit := t.CalcProfitPercent(rate)

	if !stoploss.IsZero() && profit.LessThan(stoploss) {
		return domain.ExitReasonStoploss, true
	}

	elapsed := now.Sub(t.OpenDate).Minutes()
	for _, entry := range roi {
		if elapsed > float64(entry.Minutes) && profit.GreaterThan(entry.Profit) {
			return domain.ExitReasonROI, true
		}
	}
	return "", false
}
