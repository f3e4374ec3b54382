package strategy

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Strategy turns candle history into a buy/sell signal for the latest candle.
type Strategy interface {
	// ID returns strategy identifier.
	ID() string

	// TickerInterval is the candle size in minutes the strategy expects.
	TickerInterval() int

	// MinimalROI is the exit table, sorted by minutes ascending.
	MinimalROI() domain.ROITable

	// Stoploss is the negative profit fraction that forces an exit.
	// Zero disables the stoploss.
	Stoploss() decimal.Decimal

	// Signal evaluates the latest candle. Candles are oldest first.
	Signal(candles []domain.Candle) (domain.Signal, error)
}

// Analysis errors
var (
	ErrInsufficientData = errors.New("not enough candles for indicators")
	ErrMalformedData    = errors.New("indicator produced non-finite value")
)

// params holds the exit parameters shared by all strategies.
type params struct {
	id       string
	interval int
	roi      domain.ROITable
	stoploss decimal.Decimal
}

func (p *params) ID() string                  { return p.id }
func (p *params) TickerInterval() int         { return p.interval }
func (p *params) MinimalROI() domain.ROITable { return p.roi }
func (p *params) Stoploss() decimal.Decimal   { return p.stoploss }

// defaultROI is the exit table used unless overridden.
func defaultROI() domain.ROITable {
	return domain.ROITable{
		{Minutes: 0, Profit: decimal.NewFromFloat(0.04)},
		{Minutes: 20, Profit: decimal.NewFromFloat(0.02)},
		{Minutes: 30, Profit: decimal.NewFromFloat(0.01)},
		{Minutes: 40, Profit: decimal.Zero},
	}
}

var defaultStoploss = decimal.NewFromFloat(-0.10)
