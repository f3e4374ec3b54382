// Package performance summarises closed trades for the control API and the
// scheduled daily report.
package performance

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Summary describes realised performance over a set of closed trades.
type Summary struct {
	ClosedTrades int `json:"closed_trades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`

	WinRate float64 `json:"win_rate"`

	// Absolute profit in stake currency, fees on both legs included.
	TotalProfit decimal.Decimal `json:"total_profit"`

	// Per-trade profit fractions.
	MeanProfitPct   float64 `json:"mean_profit_pct"`
	MedianProfitPct float64 `json:"median_profit_pct"`
	StddevPct       float64 `json:"stddev_pct"`

	// Cumulative profit fraction drawdown, in close order.
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	AvgDuration time.Duration `json:"avg_duration"`
	BestPair    string        `json:"best_pair,omitempty"`
	BestPairPct float64       `json:"best_pair_pct,omitempty"`
}

// Summarize computes a Summary. Open trades are ignored.
func Summarize(trades []*domain.TradeRecord) Summary {
	closed := closedInOrder(trades)
	n := len(closed)
	if n == 0 {
		return Summary{TotalProfit: decimal.Zero}
	}

	s := Summary{ClosedTrades: n, TotalProfit: decimal.Zero}
	outcomes := make([]float64, n)
	byPair := make(map[string]float64)
	var held time.Duration

	for i, t := range closed {
		pct := t.CloseProfit.Decimal.InexactFloat64()
		outcomes[i] = pct
		if pct > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.TotalProfit = s.TotalProfit.Add(t.CalcProfit(t.CloseRate.Decimal))
		byPair[t.Pair] += pct
		held += t.CloseDate.Sub(t.OpenDate)
	}

	sorted := append([]float64(nil), outcomes...)
	sort.Float64s(sorted)

	s.WinRate = float64(s.Wins) / float64(n)
	s.MeanProfitPct = mean(outcomes)
	s.MedianProfitPct = percentile(sorted, 0.5)
	s.StddevPct = stddev(outcomes, s.MeanProfitPct)
	s.MaxDrawdownPct = maxDrawdown(outcomes)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(outcomes)
	s.AvgDuration = held / time.Duration(n)
	s.BestPair, s.BestPairPct = best(byPair)
	return s
}

// closedInOrder returns the closed trades sorted by close date, then id.
func closedInOrder(trades []*domain.TradeRecord) []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if !t.IsOpen && t.CloseDate != nil && t.CloseRate.Valid {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CloseDate.Equal(*out[j].CloseDate) {
			return out[i].CloseDate.Before(*out[j].CloseDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func best(byPair map[string]float64) (string, float64) {
	pairs := make([]string, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	var bestPair string
	bestPct := math.Inf(-1)
	for _, p := range pairs {
		if byPair[p] > bestPct {
			bestPair, bestPct = p, byPair[p]
		}
	}
	return bestPair, bestPct
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		sumSq += (x - m) * (x - m)
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// percentile interpolates linearly; sorted must be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

func maxDrawdown(outcomes []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, o := range outcomes {
		cumulative += o
		peak = math.Max(peak, cumulative)
		worst = math.Max(worst, peak-cumulative)
	}
	return worst
}

func maxConsecutiveLosses(outcomes []float64) int {
	longest, current := 0, 0
	for _, o := range outcomes {
		if o <= 0 {
			current++
			longest = max(longest, current)
		} else {
			current = 0
		}
	}
	return longest
}
