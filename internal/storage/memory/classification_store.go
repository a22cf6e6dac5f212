package memory

import (
	"context"
	"sort"
	"sync"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// ClassificationStore is an in-memory implementation of storage.ClassificationStore.
type ClassificationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Classification // keyed by dedup key
}

// NewClassificationStore creates a new in-memory classification store.
func NewClassificationStore() *ClassificationStore {
	return &ClassificationStore{
		data: make(map[string]*domain.Classification),
	}
}

// Insert adds a new classification. Returns ErrDuplicateKey if a record
// with the same dedup key exists.
func (s *ClassificationStore) Insert(_ context.Context, c *domain.Classification) error {
	if c == nil || c.DedupKey == "" || c.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.DedupKey]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *c
	s.data[c.DedupKey] = &cp
	return nil
}

// GetByMint retrieves all classifications for a mint, ordered by timestamp ASC.
func (s *ClassificationStore) GetByMint(_ context.Context, mint string) ([]*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Classification
	for _, c := range s.data {
		if c.Mint == mint {
			cp := *c
			result = append(result, &cp)
		}
	}

	sortClassifications(result)
	return result, nil
}

// GetByKind retrieves all classifications of a kind, ordered by timestamp ASC.
func (s *ClassificationStore) GetByKind(_ context.Context, kind domain.Kind) ([]*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Classification
	for _, c := range s.data {
		if c.Kind == kind {
			cp := *c
			result = append(result, &cp)
		}
	}

	sortClassifications(result)
	return result, nil
}

func sortClassifications(cs []*domain.Classification) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Timestamp != cs[j].Timestamp {
			return cs[i].Timestamp < cs[j].Timestamp
		}
		return cs[i].DedupKey < cs[j].DedupKey
	})
}

var _ storage.ClassificationStore = (*ClassificationStore)(nil)
