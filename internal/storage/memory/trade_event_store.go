package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu     sync.RWMutex
	events []*domain.TradeEvent
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{}
}

// Append adds events.
func (s *TradeEventStore) Append(_ context.Context, events ...*domain.TradeEvent) error {
	for _, e := range events {
		if e == nil || e.Kind == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		ev := *e
		s.events = append(s.events, &ev)
	}
	return nil
}

// GetByTradeID returns events of one trade ordered by timestamp ASC.
func (s *TradeEventStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.TradeEvent, error) {
	return s.filter(func(e *domain.TradeEvent) bool { return e.TradeID == tradeID }), nil
}

// GetByTimeRange returns events in [start, end) ordered by timestamp ASC.
func (s *TradeEventStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.TradeEvent, error) {
	return s.filter(func(e *domain.TradeEvent) bool {
		return !e.Timestamp.Before(start) && e.Timestamp.Before(end)
	}), nil
}

func (s *TradeEventStore) filter(keep func(*domain.TradeEvent) bool) []*domain.TradeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, e := range s.events {
		if keep(e) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

var _ storage.TradeEventStore = (*TradeEventStore)(nil)
