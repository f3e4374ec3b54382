package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Append adds events in one batch.
func (s *TradeEventStore) Append(ctx context.Context, events ...*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.Kind == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			trade_id, pair, kind, rate, amount, profit, reason, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.TradeID, e.Pair, e.Kind,
			e.Rate, e.Amount, e.Profit,
			e.Reason, e.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTradeID returns events of one trade ordered by timestamp ASC.
func (s *TradeEventStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.TradeEvent, error) {
	query := `
		SELECT trade_id, pair, kind, rate, amount, profit, reason, timestamp
		FROM trade_events
		WHERE trade_id = ?
		ORDER BY timestamp ASC
	`
	return s.query(ctx, query, tradeID)
}

// GetByTimeRange returns events in [start, end) ordered by timestamp ASC.
func (s *TradeEventStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TradeEvent, error) {
	query := `
		SELECT trade_id, pair, kind, rate, amount, profit, reason, timestamp
		FROM trade_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, trade_id ASC
	`
	return s.query(ctx, query, start.UTC(), end.UTC())
}

func (s *TradeEventStore) query(ctx context.Context, query string, args ...any) ([]*domain.TradeEvent, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trade events: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeEvent
	for rows.Next() {
		var (
			e                    domain.TradeEvent
			rate, amount, profit decimal.Decimal
		)
		if err := rows.Scan(&e.TradeID, &e.Pair, &e.Kind, &rate, &amount, &profit, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trade event: %w", err)
		}
		e.Rate, e.Amount, e.Profit = rate, amount, profit
		result = append(result, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade events: %w", err)
	}

	return result, nil
}
