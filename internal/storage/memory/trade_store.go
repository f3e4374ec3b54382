package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// Used for dry runs and tests.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.ID] = t.Clone()
	return nil
}

// Update replaces a trade. Returns ErrNotFound if the id does not exist.
func (s *TradeStore) Update(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; !exists {
		return storage.ErrNotFound
	}

	s.data[t.ID] = t.Clone()
	return nil
}

// Delete removes a trade. Returns ErrNotFound if the id does not exist.
func (s *TradeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, id)
	return nil
}

// GetByID retrieves a trade by its id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, id string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return t.Clone(), nil
}

// GetOpen returns all open trades ordered by open date ASC.
func (s *TradeStore) GetOpen(_ context.Context) ([]*domain.TradeRecord, error) {
	return s.filter(func(t *domain.TradeRecord) bool { return t.IsOpen }), nil
}

// GetPendingOrders returns all trades with an outstanding order.
func (s *TradeStore) GetPendingOrders(_ context.Context) ([]*domain.TradeRecord, error) {
	return s.filter(func(t *domain.TradeRecord) bool { return t.HasPendingOrder() }), nil
}

// GetClosed returns trades closed at or after since, ordered by close date ASC.
func (s *TradeStore) GetClosed(_ context.Context, since time.Time) ([]*domain.TradeRecord, error) {
	result := s.filter(func(t *domain.TradeRecord) bool {
		return !t.IsOpen && t.CloseDate != nil && !t.CloseDate.Before(since)
	})

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CloseDate.Before(*result[j].CloseDate)
	})

	return result, nil
}

// Flush is a no-op; writes are applied immediately.
func (s *TradeStore) Flush(_ context.Context) error {
	return nil
}

func (s *TradeStore) filter(keep func(*domain.TradeRecord) bool) []*domain.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if keep(t) {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenDate.Equal(result[j].OpenDate) {
			return result[i].OpenDate.Before(result[j].OpenDate)
		}
		return result[i].ID < result[j].ID
	})

	return result
}

var _ storage.TradeStore = (*TradeStore)(nil)
