package trading

import (
	"context"

	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/storage"
)

// Notifier delivers operator messages. Delivery is fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Journal appends trade lifecycle events. A nil store disables it.
// Write failures are logged and never interrupt trading.
type Journal struct {
	store  storage.TradeEventStore
	logger *zap.Logger
}

// NewJournal creates a Journal.
func NewJournal(store storage.TradeEventStore, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{store: store, logger: logger.Named("journal")}
}

// Record appends ev.
func (j *Journal) Record(ctx context.Context, ev *domain.TradeEvent) {
	if j == nil || j.store == nil {
		return
	}
	if err := j.store.Append(ctx, ev); err != nil {
		j.logger.Warn("trade event not recorded",
			zap.String("trade_id", ev.TradeID),
			zap.String("kind", ev.Kind),
			zap.Error(err),
		)
	}
}
