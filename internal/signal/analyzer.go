// Package signal evaluates strategy signals on live ticker history.
package signal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/exchange"
	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/strategy"
)

// DefaultMaxAge is how old the latest candle may be before the signal is
// treated as stale.
const DefaultMaxAge = 10 * time.Minute

// Options configures the Analyzer.
type Options struct {
	Exchange exchange.Exchange
	Strategy strategy.Strategy
	MaxAge   time.Duration // 0 = DefaultMaxAge
	Now      func() time.Time
	Logger   *zap.Logger
}

// Analyzer turns candle history into a (buy, sell) pair.
type Analyzer struct {
	exchange exchange.Exchange
	strategy strategy.Strategy
	maxAge   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		exchange: opts.Exchange,
		strategy: opts.Strategy,
		maxAge:   maxAge,
		now:      now,
		logger:   logger.Named("signal"),
	}
}

// Strategy returns the strategy driving the analyzer.
func (a *Analyzer) Strategy() strategy.Strategy { return a.strategy }

// Evaluate returns the signal for pair. Any failure to fetch or analyze
// history degrades to domain.NoSignal.
func (a *Analyzer) Evaluate(ctx context.Context, pair string) domain.Signal {
	candles, err := a.exchange.GetTickerHistory(ctx, pair, a.strategy.TickerInterval())
	if err != nil {
		a.logger.Warn("ticker history unavailable", zap.String("pair", pair), zap.Error(err))
		observability.RecordSignal("error")
		return domain.NoSignal
	}
	if len(candles) == 0 {
		a.logger.Warn("empty ticker history", zap.String("pair", pair))
		observability.RecordSignal("empty")
		return domain.NoSignal
	}

	latest := candles[len(candles)-1].OpenTime
	if age := a.now().Sub(latest); age > a.maxAge {
		a.logger.Warn("outdated history",
			zap.String("pair", pair),
			zap.Duration("age", age),
			zap.Time("latest", latest),
		)
		observability.RecordSignal("stale")
		return domain.NoSignal
	}

	sig, err := a.strategy.Signal(candles)
	if err != nil {
		a.logger.Warn("unable to analyze ticker", zap.String("pair", pair), zap.Error(err))
		observability.RecordSignal("error")
		return domain.NoSignal
	}

	a.logger.Debug("signal evaluated",
		zap.String("pair", pair),
		zap.Bool("buy", sig.Buy),
		zap.Bool("sell", sig.Sell),
	)
	observability.RecordSignal(result(sig))
	return sig
}

func result(sig domain.Signal) string {
	switch {
	case sig.Buy && sig.Sell:
		return "both"
	case sig.Buy:
		return "buy"
	case sig.Sell:
		return "sell"
	default:
		return "none"
	}
}
