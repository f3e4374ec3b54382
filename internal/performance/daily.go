package performance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Day is the realised result of trades closed on one UTC calendar day.
type Day struct {
	Date   time.Time       `json:"date"`
	Trades int             `json:"trades"`
	Profit decimal.Decimal `json:"profit"`
}

// Daily buckets closed trades into the last days UTC days ending at now,
// newest first. Days without trades are included with zero profit.
func Daily(trades []*domain.TradeRecord, days int, now time.Time) []Day {
	if days <= 0 {
		return nil
	}
	today := now.UTC().Truncate(24 * time.Hour)
	out := make([]Day, days)
	for i := range out {
		out[i] = Day{Date: today.AddDate(0, 0, -i), Profit: decimal.Zero}
	}
	for _, t := range closedInOrder(trades) {
		day := t.CloseDate.UTC().Truncate(24 * time.Hour)
		i := int(today.Sub(day).Hours() / 24)
		if i < 0 || i >= days {
			continue
		}
		out[i].Trades++
		out[i].Profit = out[i].Profit.Add(t.CalcProfit(t.CloseRate.Decimal))
	}
	return out
}

// Since returns the start of the window covered by Daily.
func Since(days int, now time.Time) time.Time {
	return now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
}
