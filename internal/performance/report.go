package performance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/storage"
	"github.com/ermakus/freqtrade/internal/trading"
)

// Reporter builds the periodic performance message.
type Reporter struct {
	store         storage.TradeStore
	notifier      trading.Notifier
	stakeCurrency string
	days          int
	now           func() time.Time
	logger        *zap.Logger
}

// ReporterOptions configures a Reporter.
type ReporterOptions struct {
	Store         storage.TradeStore
	Notifier      trading.Notifier
	StakeCurrency string
	Days          int // default 7
	Now           func() time.Time
	Logger        *zap.Logger
}

// NewReporter creates a Reporter.
func NewReporter(opts ReporterOptions) *Reporter {
	days := opts.Days
	if days <= 0 {
		days = 7
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		store:         opts.Store,
		notifier:      opts.Notifier,
		stakeCurrency: opts.StakeCurrency,
		days:          days,
		now:           now,
		logger:        logger.Named("report"),
	}
}

// Profit returns the all-time summary and updates the realised profit gauge.
func (r *Reporter) Profit(ctx context.Context) (Summary, error) {
	trades, err := r.store.GetClosed(ctx, time.Time{})
	if err != nil {
		return Summary{}, fmt.Errorf("query closed trades: %w", err)
	}
	s := Summarize(trades)
	observability.SetRealizedProfit(s.TotalProfit.InexactFloat64())
	return s, nil
}

// Daily returns the per-day breakdown for the configured window.
func (r *Reporter) Daily(ctx context.Context) ([]Day, error) {
	now := r.now()
	trades, err := r.store.GetClosed(ctx, Since(r.days, now))
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	return Daily(trades, r.days, now), nil
}

// Send builds the report and hands it to the notifier. Failures are logged.
func (r *Reporter) Send(ctx context.Context) {
	summary, err := r.Profit(ctx)
	if err != nil {
		r.logger.Error("profit summary failed", zap.Error(err))
		return
	}
	days, err := r.Daily(ctx)
	if err != nil {
		r.logger.Error("daily breakdown failed", zap.Error(err))
		return
	}
	r.notifier.Send(ctx, Format(summary, days, r.stakeCurrency))
}

// Format renders a summary and daily breakdown as a notification message.
func Format(s Summary, days []Day, stakeCurrency string) string {
	var b strings.Builder
	b.WriteString("*Performance:*\n")
	if s.ClosedTrades == 0 {
		b.WriteString("No closed trades yet.\n")
	} else {
		fmt.Fprintf(&b, "Closed trades: `%d` (%d wins, %d losses)\n", s.ClosedTrades, s.Wins, s.Losses)
		fmt.Fprintf(&b, "Win rate: `%.1f%%`\n", s.WinRate*100)
		fmt.Fprintf(&b, "Profit: `%s %s` (mean `%.2f%%`)\n", s.TotalProfit.StringFixed(8), stakeCurrency, s.MeanProfitPct*100)
		fmt.Fprintf(&b, "Best pair: `%s` (`%.2f%%`)\n", s.BestPair, s.BestPairPct*100)
		fmt.Fprintf(&b, "Avg duration: `%s`\n", s.AvgDuration.Round(time.Second))
	}
	for _, d := range days {
		fmt.Fprintf(&b, "%s: `%s %s` in %d trades\n", d.Date.Format("2006-01-02"), d.Profit.StringFixed(8), stakeCurrency, d.Trades)
	}
	return b.String()
}
