package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// WindowResultStore is an in-memory implementation of storage.WindowResultStore.
type WindowResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WindowResult // keyed by mint|seq
}

// NewWindowResultStore creates a new in-memory window result store.
func NewWindowResultStore() *WindowResultStore {
	return &WindowResultStore{
		data: make(map[string]*domain.WindowResult),
	}
}

func windowKey(mint string, seq int64) string {
	return fmt.Sprintf("%s|%d", mint, seq)
}

// InsertBulk adds multiple window results. A window closes exactly once,
// so a duplicate (mint, seq) is rejected.
func (s *WindowResultStore) InsertBulk(_ context.Context, results []*domain.WindowResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		if r == nil || r.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[windowKey(r.Mint, r.Seq)]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for _, r := range results {
		cp := *r
		s.data[windowKey(r.Mint, r.Seq)] = &cp
	}

	return nil
}

// GetByMint retrieves all results for a mint, ordered by seq ASC.
func (s *WindowResultStore) GetByMint(_ context.Context, mint string) ([]*domain.WindowResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WindowResult
	for _, r := range s.data {
		if r.Mint == mint {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.WindowResultStore = (*WindowResultStore)(nil)
