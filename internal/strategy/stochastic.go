package strategy

import (
	"github.com/ermakus/freqtrade/internal/domain"
)

// StochasticStrategy trades fast/slow stochastic crossovers confirmed by ADX
// and CCI.
type StochasticStrategy struct {
	params
}

// NewStochasticStrategy creates the "stochastic" strategy.
func NewStochasticStrategy() *StochasticStrategy {
	return &StochasticStrategy{params: params{
		id:       domain.StrategyStochastic,
		interval: 5,
		roi:      defaultROI(),
		stoploss: defaultStoploss,
	}}
}

var _ Strategy = (*StochasticStrategy)(nil)

// Signal needs enough history to warm up ADX(35) and STOCHF(50).
func (s *StochasticStrategy) Signal(candles []domain.Candle) (domain.Signal, error) {
	if len(candles) < 72 {
		return domain.NoSignal, ErrInsufficientData
	}
	last := len(candles) - 1
	prev := last - 1
	c := closes(candles)

	ema5 := EMA(c, 5)
	cci := CCI(candles, 5)
	fastK, fastD := StochF(candles, 5, 3)
	adx, _, _ := DMI(candles, 5)
	slowADX, _, _ := DMI(candles, 35)
	slowK, slowD := StochF(candles, 50, 3)

	var volSum float64
	for _, cd := range candles {
		volSum += cd.Volume
	}
	meanVolume := volSum / float64(len(candles)) * 10

	if !finite(ema5[last], cci[last], fastK[last], fastD[last], fastK[prev], fastD[prev],
		adx[last], slowADX[last], slowK[prev], slowD[prev]) {
		return domain.NoSignal, ErrMalformedData
	}

	buy := (adx[last] > 50 || slowADX[last] > 26) &&
		cci[last] < -100 &&
		fastK[prev] < 20 && fastD[prev] < 20 &&
		slowK[prev] < 30 && slowD[prev] < 30 &&
		fastK[prev] < fastD[prev] && fastK[last] > fastD[last] &&
		meanVolume > 0.75 &&
		c[last] > 0.000001

	sell := slowADX[last] < 25 &&
		(fastK[last] > 70 || fastD[last] > 70) &&
		fastK[prev] < fastD[prev] &&
		c[last] > ema5[last]

	return domain.Signal{Buy: buy, Sell: sell}, nil
}
