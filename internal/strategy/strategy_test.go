package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ermakus/freqtrade/internal/domain"
)

func TestDefaultStrategy_BuysDipInUptrend(t *testing.T) {
	candles := trend(200, 100, 1)
	last := candles[len(candles)-1].Close
	for i := 1; i <= 6; i++ {
		c := last - float64(i)*5
		candles = append(candles, domain.Candle{Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 10})
	}

	sig, err := NewDefaultStrategy().Signal(candles)
	require.NoError(t, err)
	assert.True(t, sig.Buy)
	assert.False(t, sig.Sell)
}

func TestDefaultStrategy_NoBuyInPlainUptrend(t *testing.T) {
	sig, err := NewDefaultStrategy().Signal(trend(200, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.NoSignal, sig)
}

func TestStrategies_InsufficientData(t *testing.T) {
	short := trend(10, 100, 1)
	for _, s := range []Strategy{
		NewDefaultStrategy(), NewClassicStrategy(), NewStochasticStrategy(),
		NewRohitStrategy(), NewBaudboxStrategy(),
	} {
		_, err := s.Signal(short)
		assert.ErrorIs(t, err, ErrInsufficientData, s.ID())
	}
}

func TestStrategies_MalformedData(t *testing.T) {
	candles := trend(200, 100, 1)
	candles[len(candles)-1].Close = math.NaN()

	for _, s := range []Strategy{
		NewDefaultStrategy(), NewClassicStrategy(), NewStochasticStrategy(),
		NewRohitStrategy(), NewBaudboxStrategy(),
	} {
		_, err := s.Signal(candles)
		assert.ErrorIs(t, err, ErrMalformedData, s.ID())
	}
}

func TestClassicStrategy_StrongTrendBuys(t *testing.T) {
	sig, err := NewClassicStrategy().Signal(trend(100, 100, 1))
	require.NoError(t, err)
	assert.True(t, sig.Buy, "adx > 65 with positive +DI")
	assert.False(t, sig.Sell, "-DI is zero")
}

func TestStochasticStrategy_NoEntryInUptrend(t *testing.T) {
	sig, err := NewStochasticStrategy().Signal(trend(100, 100, 1))
	require.NoError(t, err)
	assert.False(t, sig.Buy)
}

func TestStrategyDefaults(t *testing.T) {
	s := NewDefaultStrategy()

	assert.Equal(t, domain.StrategyDefault, s.ID())
	assert.Equal(t, 5, s.TickerInterval())
	assert.Equal(t, "-0.1", s.Stoploss().String())

	roi := s.MinimalROI()
	require.Len(t, roi, 4)
	assert.Equal(t, int64(0), roi[0].Minutes)
	assert.Equal(t, "0.04", roi[0].Profit.String())
	assert.Equal(t, int64(40), roi[3].Minutes)
}

func TestRohitStrategy_Trends(t *testing.T) {
	sig, err := NewRohitStrategy().Signal(trend(100, 200, -1))
	require.NoError(t, err)
	assert.True(t, sig.Buy, "oversold with -DI dominant")
	assert.False(t, sig.Sell)

	sig, err = NewRohitStrategy().Signal(trend(100, 100, 1))
	require.NoError(t, err)
	assert.False(t, sig.Buy)
	assert.True(t, sig.Sell, "overbought with +DI dominant")
}

func TestBaudboxStrategy_NeverSells(t *testing.T) {
	for _, candles := range [][]domain.Candle{trend(100, 100, 1), trend(100, 200, -1)} {
		sig, err := NewBaudboxStrategy().Signal(candles)
		require.NoError(t, err)
		assert.False(t, sig.Sell)
	}

	sig, err := NewBaudboxStrategy().Signal(trend(100, 100, 1))
	require.NoError(t, err)
	assert.False(t, sig.Buy, "cci is positive in an uptrend")
}
