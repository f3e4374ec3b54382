package performance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ermakus/freqtrade/internal/storage/memory"
)

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Send(_ context.Context, msg string) { n.messages = append(n.messages, msg) }

func TestReporter_Send(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTradeStore()
	for _, tr := range fixtureTrades(t) {
		require.NoError(t, store.Insert(ctx, tr))
	}
	notifier := &recordingNotifier{}
	r := NewReporter(ReporterOptions{
		Store:         store,
		Notifier:      notifier,
		StakeCurrency: "BTC",
		Days:          2,
		Now:           func() time.Time { return day1.Add(36 * time.Hour) },
	})

	summary, err := r.Profit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ClosedTrades)

	r.Send(ctx)
	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Contains(t, msg, "Closed trades: `3`")
	assert.Contains(t, msg, "0.07000000 BTC")
	assert.Contains(t, msg, "2024-03-02: `-0.03000000 BTC` in 2 trades")
	assert.Contains(t, msg, "2024-03-01: `0.10000000 BTC` in 1 trades")
}

func TestFormat_NoTrades(t *testing.T) {
	msg := Format(Summarize(nil), nil, "BTC")
	assert.Contains(t, msg, "No closed trades yet.")
}
