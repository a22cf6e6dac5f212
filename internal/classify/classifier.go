// Package classify runs the behavioral classifiers over aggregator and
// wallet-index state and emits append-only Classification records.
package classify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
)

// Classifier reacts to engine lifecycle hooks. Hooks return the
// classifications triggered by the event, already dedup-claimed, or nil.
// A classifier only implements the hooks it cares about via noopClassifier.
type Classifier interface {
	// Name identifies the classifier in logs and error reports.
	Name() string

	// OnTokenCreated fires after a creation event is applied.
	OnTokenCreated(ctx context.Context, e *domain.CreationEvent) ([]*domain.Classification, error)

	// OnTrade fires after a trade is applied to the aggregator and index.
	OnTrade(ctx context.Context, e *domain.TradeEvent) ([]*domain.Classification, error)

	// OnWindowClosed fires once per closed trade window.
	OnWindowClosed(ctx context.Context, r *domain.WindowResult) ([]*domain.Classification, error)

	// OnTick fires on the periodic standing-query tick. now is ms.
	OnTick(ctx context.Context, now int64) ([]*domain.Classification, error)
}

// noopClassifier provides default no-op hooks for embedding.
type noopClassifier struct{}

func (noopClassifier) OnTokenCreated(context.Context, *domain.CreationEvent) ([]*domain.Classification, error) {
	return nil, nil
}

func (noopClassifier) OnTrade(context.Context, *domain.TradeEvent) ([]*domain.Classification, error) {
	return nil, nil
}

func (noopClassifier) OnWindowClosed(context.Context, *domain.WindowResult) ([]*domain.Classification, error) {
	return nil, nil
}

func (noopClassifier) OnTick(context.Context, int64) ([]*domain.Classification, error) {
	return nil, nil
}

func newClassification(kind domain.Kind, key, mint, wallet string, metric decimal.Decimal, ts int64) *domain.Classification {
	return &domain.Classification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Mint:      mint,
		Wallet:    wallet,
		DedupKey:  key,
		Metric:    metric,
		Timestamp: ts,
	}
}
