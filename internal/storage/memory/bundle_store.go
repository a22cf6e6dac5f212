package memory

import (
	"context"
	"sort"
	"sync"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// BundleStore is an in-memory implementation of storage.BundleStore.
// Bundle snapshots are overwritten per (mint, slot): a later snapshot of the
// same bundle supersedes the earlier one.
type BundleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bundle // keyed by mint|slot
}

// NewBundleStore creates a new in-memory bundle store.
func NewBundleStore() *BundleStore {
	return &BundleStore{
		data: make(map[string]*domain.Bundle),
	}
}

// InsertBulk adds multiple bundle snapshots, replacing existing snapshots
// for the same (mint, slot).
func (s *BundleStore) InsertBulk(_ context.Context, bundles []*domain.Bundle) error {
	if len(bundles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bundles {
		if b == nil || b.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	for _, b := range bundles {
		cp := *b
		s.data[windowKey(b.Mint, b.Slot)] = &cp
	}

	return nil
}

// GetByMint retrieves all bundles for a mint, ordered by slot ASC.
func (s *BundleStore) GetByMint(_ context.Context, mint string) ([]*domain.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bundle
	for _, b := range s.data {
		if b.Mint == mint {
			cp := *b
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Slot < result[j].Slot
	})

	return result, nil
}

var _ storage.BundleStore = (*BundleStore)(nil)
