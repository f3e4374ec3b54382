package strategy

import (
	"github.com/ermakus/freqtrade/internal/domain"
)

// RohitStrategy buys deep oversold readings with a weak +DI and sells
// overbought readings with a dominant +DI.
type RohitStrategy struct {
	params
}

// NewRohitStrategy creates the "rohit" strategy.
func NewRohitStrategy() *RohitStrategy {
	return &RohitStrategy{params: params{
		id:       domain.StrategyRohit,
		interval: 5,
		roi:      defaultROI(),
		stoploss: defaultStoploss,
	}}
}

var _ Strategy = (*RohitStrategy)(nil)

// Signal evaluates:
//
//	buy:  rsi < 35 && fastd < 25 && fastk < 25 && (adx < 15 || adx > 45) && +di < 10 && -di > 25
//	sell: rsi > 55 && fastd > 45 && fastk > 45 && adx != 25 && +di > 45 && -di < 25
func (s *RohitStrategy) Signal(candles []domain.Candle) (domain.Signal, error) {
	if len(candles) < 30 {
		return domain.NoSignal, ErrInsufficientData
	}
	last := len(candles) - 1
	c := closes(candles)

	rsi := RSI(c, 14)
	fastK, fastD := StochF(candles, 5, 3)
	adx, plusDI, minusDI := DMI(candles, 14)

	if !finite(rsi[last], fastK[last], fastD[last], adx[last], plusDI[last], minusDI[last]) {
		return domain.NoSignal, ErrMalformedData
	}

	buy := rsi[last] < 35 &&
		fastD[last] < 25 && fastK[last] < 25 &&
		(adx[last] < 15 || adx[last] > 45) &&
		plusDI[last] < 10 && minusDI[last] > 25

	sell := rsi[last] > 55 &&
		fastD[last] > 45 && fastK[last] > 45 &&
		adx[last] != 25 &&
		plusDI[last] > 45 && minusDI[last] < 25

	return domain.Signal{Buy: buy, Sell: sell}, nil
}
