package memory

import (
	"context"
	"errors"
	"testing"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

func TestClassificationStore_InsertAndGet(t *testing.T) {
	store := NewClassificationStore()
	ctx := context.Background()

	c := &domain.Classification{
		ID:        "id1",
		Kind:      domain.KindSniper,
		Mint:      "mint1",
		DedupKey:  "key1",
		Timestamp: 1704067200000,
	}

	if err := store.Insert(ctx, c); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	byMint, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(byMint) != 1 {
		t.Fatalf("Expected 1 classification, got %d", len(byMint))
	}

	byKind, err := store.GetByKind(ctx, domain.KindSniper)
	if err != nil {
		t.Fatalf("GetByKind failed: %v", err)
	}
	if len(byKind) != 1 {
		t.Fatalf("Expected 1 classification, got %d", len(byKind))
	}
}

func TestClassificationStore_DedupKeyConflict(t *testing.T) {
	store := NewClassificationStore()
	ctx := context.Background()

	first := &domain.Classification{ID: "id1", Kind: domain.KindSniper, DedupKey: "key1"}
	second := &domain.Classification{ID: "id2", Kind: domain.KindSniper, DedupKey: "key1"}

	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, second)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestClassificationStore_OrderedByTimestamp(t *testing.T) {
	store := NewClassificationStore()
	ctx := context.Background()

	cs := []*domain.Classification{
		{ID: "1", Kind: domain.KindCopycat, Mint: "m", DedupKey: "k1", Timestamp: 3000},
		{ID: "2", Kind: domain.KindCopycat, Mint: "m", DedupKey: "k2", Timestamp: 1000},
		{ID: "3", Kind: domain.KindCopycat, Mint: "m", DedupKey: "k3", Timestamp: 2000},
	}
	for _, c := range cs {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByMint(ctx, "m")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp > got[i].Timestamp {
			t.Fatalf("Results not ordered by timestamp: %v", got)
		}
	}
}
