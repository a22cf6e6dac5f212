package classify

import (
	"context"
	"fmt"
	"log"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
	"token-sentry/internal/wallets"
)

// Set fans engine hooks out to every classifier. A failing or panicking
// classifier never takes down the others: its error is reported through
// the error callback and processing continues.
type Set struct {
	classifiers []Classifier
	dedup       *dedupSet
	logger      *log.Logger

	// onError receives per-classifier failures. Optional.
	onError func(classifier string, err error)
}

// NewSet wires the full classifier set in trigger order. Sniper must run
// before sniper-bot: the bot classifier reads participation counters the
// sniper classifier updates.
func NewSet(cfg Config, tokens storage.TokenStore, agg *aggregate.Aggregator, index *wallets.Index, logger *log.Logger) *Set {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	dedup := newDedupSet()

	return &Set{
		classifiers: []Classifier{
			NewDeveloperClassifier(tokens, agg, dedup),
			NewCopycatClassifier(tokens, index, dedup, cfg.CopycatLookback, cfg.Similarity),
			NewSniperClassifier(index, dedup, cfg.SniperMinTrades),
			NewSniperBotClassifier(index, dedup, cfg.SniperMinTrades, cfg.SniperBotMinTokens),
			NewSniperWalletClassifier(index, dedup, cfg.SniperWalletMinCount),
			NewBotDeployerClassifier(index, dedup, cfg.BotDeployerMinTokens, cfg.BotDeployerSpan),
		},
		dedup:  dedup,
		logger: logger,
	}
}

// Add appends an extra classifier to the set. It shares the set's dedup
// space.
func (s *Set) Add(c Classifier) {
	s.classifiers = append(s.classifiers, c)
}

// SetErrorHandler installs the per-classifier failure callback.
func (s *Set) SetErrorHandler(fn func(classifier string, err error)) {
	s.onError = fn
}

// OnTokenCreated dispatches a creation event to all classifiers.
func (s *Set) OnTokenCreated(ctx context.Context, e *domain.CreationEvent) []*domain.Classification {
	return s.dispatch(func(c Classifier) ([]*domain.Classification, error) {
		return c.OnTokenCreated(ctx, e)
	})
}

// OnTrade dispatches an applied trade to all classifiers.
func (s *Set) OnTrade(ctx context.Context, e *domain.TradeEvent) []*domain.Classification {
	return s.dispatch(func(c Classifier) ([]*domain.Classification, error) {
		return c.OnTrade(ctx, e)
	})
}

// OnWindowClosed dispatches a closed window to all classifiers.
func (s *Set) OnWindowClosed(ctx context.Context, r *domain.WindowResult) []*domain.Classification {
	return s.dispatch(func(c Classifier) ([]*domain.Classification, error) {
		return c.OnWindowClosed(ctx, r)
	})
}

// OnTick dispatches the standing-query tick to all classifiers.
func (s *Set) OnTick(ctx context.Context, now int64) []*domain.Classification {
	return s.dispatch(func(c Classifier) ([]*domain.Classification, error) {
		return c.OnTick(ctx, now)
	})
}

// ClaimedKeys returns the number of dedup keys claimed so far.
func (s *Set) ClaimedKeys() int {
	return s.dedup.size()
}

func (s *Set) dispatch(hook func(Classifier) ([]*domain.Classification, error)) []*domain.Classification {
	var out []*domain.Classification
	for _, c := range s.classifiers {
		results, err := s.invoke(c, hook)
		if err != nil {
			s.logger.Printf("[classify] %s failed: %v", c.Name(), err)
			if s.onError != nil {
				s.onError(c.Name(), err)
			}
			continue
		}
		out = append(out, results...)
	}
	return out
}

func (s *Set) invoke(c Classifier, hook func(Classifier) ([]*domain.Classification, error)) (results []*domain.Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook(c)
}
