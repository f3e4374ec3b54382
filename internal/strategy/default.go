package strategy

import (
	"github.com/ermakus/freqtrade/internal/domain"
)

// DefaultStrategy buys oversold dips inside an uptrend and never signals a sell.
// Exits come from ROI and stoploss alone.
type DefaultStrategy struct {
	params
}

// NewDefaultStrategy creates the default strategy with its stock exit table.
func NewDefaultStrategy() *DefaultStrategy {
	return &DefaultStrategy{params: params{
		id:       domain.StrategyDefault,
		interval: 5,
		roi:      defaultROI(),
		stoploss: defaultStoploss,
	}}
}

var _ Strategy = (*DefaultStrategy)(nil)

// Signal buys when fastd < 44, RSI < 34 and EMA50 is above EMA150.
func (s *DefaultStrategy) Signal(candles []domain.Candle) (domain.Signal, error) {
	if len(candles) < 150 {
		return domain.NoSignal, ErrInsufficientData
	}
	last := len(candles) - 1
	c := closes(candles)

	_, fastD := StochF(candles, 5, 3)
	rsi := RSI(c, 14)
	ema50 := EMA(c, 50)
	ema150 := EMA(c, 150)

	if !finite(fastD[last], rsi[last], ema50[last], ema150[last]) {
		return domain.NoSignal, ErrMalformedData
	}

	buy := fastD[last] < 44 && rsi[last] < 34 && ema50[last] > ema150[last]
	return domain.Signal{Buy: buy}, nil
}
