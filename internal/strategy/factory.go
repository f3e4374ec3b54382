package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidROI      = errors.New("invalid minimal_roi")
	ErrInvalidStoploss = errors.New("stoploss must be negative")
	ErrInvalidInterval = errors.New("ticker interval must be positive")
)

// FromConfig creates a Strategy by name and applies config overrides.
// An empty name selects the default strategy.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	var (
		s Strategy
		p *params
	)
	switch cfg.Name {
	case "", domain.StrategyDefault:
		d := NewDefaultStrategy()
		s, p = d, &d.params
	case domain.StrategyBase:
		c := NewClassicStrategy()
		s, p = c, &c.params
	case domain.StrategyStochastic:
		st := NewStochasticStrategy()
		s, p = st, &st.params
	case domain.StrategyRohit:
		r := NewRohitStrategy()
		s, p = r, &r.params
	case domain.StrategyBaudbox:
		b := NewBaudboxStrategy()
		s, p = b, &b.params
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Name)
	}

	if cfg.TickerInterval < 0 {
		return nil, ErrInvalidInterval
	}
	if cfg.TickerInterval > 0 {
		p.interval = cfg.TickerInterval
	}

	if cfg.MinimalROI != nil {
		roi, err := domain.NewROITable(cfg.MinimalROI)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidROI, err)
		}
		if len(roi) == 0 {
			return nil, fmt.Errorf("%w: empty table", ErrInvalidROI)
		}
		p.roi = roi
	}

	if cfg.Stoploss != nil {
		sl := decimal.NewFromFloat(*cfg.Stoploss)
		if !sl.IsNegative() {
			return nil, ErrInvalidStoploss
		}
		p.stoploss = sl
	}

	return s, nil
}
