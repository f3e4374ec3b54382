package strategy

import (
	"github.com/ermakus/freqtrade/internal/domain"
)

// BaudboxStrategy is entry-only: it buys oversold CCI and stochastic
// readings in a trending market and leaves exits to ROI and stoploss.
type BaudboxStrategy struct {
	params
}

// NewBaudboxStrategy creates the "baudbox" strategy.
func NewBaudboxStrategy() *BaudboxStrategy {
	return &BaudboxStrategy{params: params{
		id:       domain.StrategyBaudbox,
		interval: 5,
		roi:      defaultROI(),
		stoploss: defaultStoploss,
	}}
}

var _ Strategy = (*BaudboxStrategy)(nil)

// Signal never sells.
func (s *BaudboxStrategy) Signal(candles []domain.Candle) (domain.Signal, error) {
	if len(candles) < 30 {
		return domain.NoSignal, ErrInsufficientData
	}
	last := len(candles) - 1
	c := closes(candles)

	cci := CCI(candles, 14)
	fastK, fastD := StochF(candles, 5, 3)
	adx, _, _ := DMI(candles, 14)

	if !finite(c[last], cci[last], fastK[last], fastD[last], adx[last]) {
		return domain.NoSignal, ErrMalformedData
	}

	buy := c[last] > 0.00001 &&
		cci[last] < -90 &&
		fastD[last] < 15 && fastK[last] < 15 &&
		fastK[last] < fastD[last] &&
		adx[last] > 15

	return domain.Signal{Buy: buy}, nil
}
