package storage

import (
	"context"
	"time"

	"github.com/ermakus/freqtrade/internal/domain"
)

// TradeStore persists trade records.
// Implementations must be read-your-writes: a successful Update is visible
// to the next query in the same process.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// Update replaces a trade. Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, t *domain.TradeRecord) error

	// Delete removes a trade. Returns ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a trade by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TradeRecord, error)

	// GetOpen returns all open trades ordered by open date ASC.
	GetOpen(ctx context.Context) ([]*domain.TradeRecord, error)

	// GetPendingOrders returns all trades with an outstanding order.
	GetPendingOrders(ctx context.Context) ([]*domain.TradeRecord, error)

	// GetClosed returns trades closed at or after since, ordered by close date ASC.
	GetClosed(ctx context.Context, since time.Time) ([]*domain.TradeRecord, error)

	// Flush commits buffered state. Stores that write through return nil.
	Flush(ctx context.Context) error
}

// TradeEventStore is an append-only log of trade lifecycle events.
type TradeEventStore interface {
	// Append adds events.
	Append(ctx context.Context, events ...*domain.TradeEvent) error

	// GetByTradeID returns events of one trade ordered by timestamp ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.TradeEvent, error)

	// GetByTimeRange returns events in [start, end) ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TradeEvent, error)
}
