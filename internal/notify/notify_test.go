package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	name     string
	err      error
	messages []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, message string) error {
	s.messages = append(s.messages, message)
	return s.err
}

func TestDispatcher_FansOutAndSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := &recordingSink{name: "broken", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}

	d := NewDispatcher(zap.New(core), failing, ok)
	d.Send(context.Background(), "hello")

	assert.Equal(t, []string{"hello"}, failing.messages)
	assert.Equal(t, []string{"hello"}, ok.messages)
	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	err := NewLogSink(zap.New(core)).Send(context.Background(), "trade opened")

	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("trade opened").Len())
}

func TestMessages(t *testing.T) {
	d := decimal.RequireFromString

	assert.Equal(t, "*BINANCE:* Buying ETH/BTC with limit `0.05000000 (0.100000 BTC)`",
		BuyPlaced("binance", "ETH_BTC", d("0.05"), d("0.1"), "BTC"))

	msg := SellPlaced("binance", "ETHBTC", d("0.055"), d("0.0512"), d("0.0049"), "BTC", "ROI")
	assert.Contains(t, msg, "profit: 5.12%")
	assert.Contains(t, msg, "reason `ROI`")

	assert.Contains(t, SellPlaced("x", "ETHBTC", d("1"), d("-0.1"), d("-1"), "BTC", "STOPLOSS"), "loss: -10.00%")
	assert.Equal(t, "*Timeout:* Unfilled buy order for ETHBTC cancelled", BuyTimedOut("ETHBTC"))
	assert.Equal(t, "*Status:* `running`", StateChanged("RUNNING"))
	assert.Contains(t, Blacklisted("ETHBTC", errors.New("MIN_NOTIONAL")), "MIN_NOTIONAL")
}
