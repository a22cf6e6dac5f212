package memory

import (
	"context"
	"sort"
	"sync"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeEvent // keyed by event id
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		data: make(map[string]*domain.TradeEvent),
	}
}

// Insert adds a new trade event. Returns ErrDuplicateKey if the id exists.
func (s *TradeEventStore) Insert(_ context.Context, e *domain.TradeEvent) error {
	if e == nil || e.ID == "" || e.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	s.data[e.ID] = &cp
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TradeEventStore) InsertBulk(_ context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track ids in this batch to detect intra-batch duplicates
	batchIDs := make(map[string]struct{}, len(events))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range events {
		if e == nil || e.ID == "" || e.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchIDs[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchIDs[e.ID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		cp := *e
		s.data[e.ID] = &cp
	}

	return nil
}

// GetByMint retrieves all events for a mint, ordered by (slot, id) ASC.
func (s *TradeEventStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, e := range s.data {
		if e.Mint == mint {
			cp := *e
			result = append(result, &cp)
		}
	}

	sortTradeEvents(result)
	return result, nil
}

// ReadAll streams every stored event ordered by (slot, id) ASC.
func (s *TradeEventStore) ReadAll(ctx context.Context, fn func(*domain.TradeEvent) error) error {
	s.mu.RLock()
	snapshot := make([]*domain.TradeEvent, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		snapshot = append(snapshot, &cp)
	}
	s.mu.RUnlock()

	sortTradeEvents(snapshot)

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func sortTradeEvents(events []*domain.TradeEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Slot != events[j].Slot {
			return events[i].Slot < events[j].Slot
		}
		return events[i].ID < events[j].ID
	})
}

var _ storage.TradeEventStore = (*TradeEventStore)(nil)
