package strategy

import (
	"github.com/ermakus/freqtrade/internal/domain"
)

// ClassicStrategy combines RSI, fast stochastic and directional movement.
type ClassicStrategy struct {
	params
}

// NewClassicStrategy creates the "base" strategy.
func NewClassicStrategy() *ClassicStrategy {
	return &ClassicStrategy{params: params{
		id:       domain.StrategyBase,
		interval: 5,
		roi:      defaultROI(),
		stoploss: defaultStoploss,
	}}
}

var _ Strategy = (*ClassicStrategy)(nil)

// Signal evaluates:
//
//	buy:  (rsi < 35 && fastd < 35 && adx > 30 && +di > 0.5) || (adx > 65 && +di > 0.5)
//	sell: ((rsi crosses 70 || fastd crosses 70) && adx > 10 && -di > 0) || (adx > 70 && -di > 0.5)
func (s *ClassicStrategy) Signal(candles []domain.Candle) (domain.Signal, error) {
	if len(candles) < 30 {
		return domain.NoSignal, ErrInsufficientData
	}
	last := len(candles) - 1
	c := closes(candles)

	rsi := RSI(c, 14)
	_, fastD := StochF(candles, 5, 3)
	adx, plusDI, minusDI := DMI(candles, 14)

	if !finite(rsi[last], rsi[last-1], fastD[last], fastD[last-1], adx[last], plusDI[last], minusDI[last]) {
		return domain.NoSignal, ErrMalformedData
	}

	buy := (rsi[last] < 35 && fastD[last] < 35 && adx[last] > 30 && plusDI[last] > 0.5) ||
		(adx[last] > 65 && plusDI[last] > 0.5)

	crossed := crossedAbove(rsi, 70, last) || crossedAbove(fastD, 70, last)
	sell := (crossed && adx[last] > 10 && minusDI[last] > 0) ||
		(adx[last] > 70 && minusDI[last] > 0.5)

	return domain.Signal{Buy: buy, Sell: sell}, nil
}
