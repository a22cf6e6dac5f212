// Package engine drives the live analysis loop: it applies validated
// events to the aggregator and the wallet index through per-token workers,
// runs the classifier hooks and forwards classifications to the sink.
package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/classify"
	"token-sentry/internal/domain"
	"token-sentry/internal/observability"
	"token-sentry/internal/sink"
	"token-sentry/internal/storage"
	"token-sentry/internal/wallets"
)

// ErrStopped is returned when events are submitted after shutdown began.
var ErrStopped = errors.New("engine stopped")

// Engine defaults.
const (
	DefaultShardCount    = 8
	DefaultQueueSize     = 256
	DefaultCloseInterval = 1 * time.Second
	DefaultTickInterval  = 30 * time.Second
)

// Options contains configuration for creating an Engine.
type Options struct {
	Aggregator  *aggregate.Aggregator
	Index       *wallets.Index
	Classifiers *classify.Set
	Sink        sink.ResultSink

	// Tokens and Trades archive raw events and give the engine its
	// duplicate detection. Optional.
	Tokens storage.TokenStore
	Trades storage.TradeEventStore

	// Windows archives closed window results. Optional.
	Windows storage.WindowResultStore

	// Bundles archives slot-bundle snapshots on each sweep. Optional.
	Bundles storage.BundleStore

	Metrics *observability.Metrics // optional

	ShardCount    int           // per-token worker count
	QueueSize     int           // per-worker queue depth
	CloseInterval time.Duration // expired-window sweep period
	TickInterval  time.Duration // standing-query classifier period

	// Mute skips classifier hooks and sink delivery. Used by replay to
	// rebuild aggregation state without re-emitting past classifications.
	Mute bool

	Logger *log.Logger

	// Now supplies the wall clock in ms. Defaults to time.Now.
	Now func() int64
}

type task struct {
	creation *domain.CreationEvent
	trade    *domain.TradeEvent
	window   *domain.WindowResult
}

// Engine owns the worker pool. Events for the same token always land on
// the same worker, so per-token application order follows submission order.
type Engine struct {
	opts   Options
	logger *log.Logger
	now    func() int64

	shards []chan task
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// New creates an engine. Run must be called before submitting events.
func New(opts Options) *Engine {
	if opts.ShardCount <= 0 {
		opts.ShardCount = DefaultShardCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.CloseInterval <= 0 {
		opts.CloseInterval = DefaultCloseInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	shards := make([]chan task, opts.ShardCount)
	for i := range shards {
		shards[i] = make(chan task, opts.QueueSize)
	}

	return &Engine{
		opts:   opts,
		logger: logger,
		now:    now,
		shards: shards,
	}
}

func (e *Engine) shardFor(mint string) chan task {
	h := fnv.New32a()
	_, _ = h.Write([]byte(mint))
	return e.shards[int(h.Sum32())%len(e.shards)]
}

// HandleCreation submits a validated creation event. Blocks on per-token
// backpressure; other tokens' workers are unaffected.
func (e *Engine) HandleCreation(ctx context.Context, ev *domain.CreationEvent) error {
	return e.submit(ctx, ev.Mint, task{creation: ev})
}

// HandleTrade submits a validated trade event.
func (e *Engine) HandleTrade(ctx context.Context, ev *domain.TradeEvent) error {
	return e.submit(ctx, ev.Mint, task{trade: ev})
}

func (e *Engine) submit(ctx context.Context, mint string, t task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.shardFor(mint) <- t:
		return nil
	}
}

// Run starts the workers and tickers and blocks until ctx is cancelled.
// Shutdown drains the queues, flushes every open window through the
// classifiers and runs a final standing-query pass.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Println("engine: starting workers")

	// Workers use a detached context: they must finish draining their
	// queues after ctx is cancelled.
	workCtx := context.Background()
	for _, ch := range e.shards {
		ch := ch
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for t := range ch {
				e.process(workCtx, t)
			}
		}()
	}

	closeTicker := time.NewTicker(e.opts.CloseInterval)
	defer closeTicker.Stop()
	tickTicker := time.NewTicker(e.opts.TickInterval)
	defer tickTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown(workCtx)
			return ctx.Err()

		case <-closeTicker.C:
			e.sweepExpired(ctx, workCtx)
			e.flushBundles(workCtx)
			e.updateGauges()

		case <-tickTicker.C:
			e.runTick(workCtx)
		}
	}
}

// sweepExpired closes elapsed windows and routes each result to the
// owning worker so window classifications serialize with the token's
// trade stream. CloseExpired already removed the windows from the
// aggregator, so a result that cannot be routed (shutdown began
// mid-sweep) is handled inline along with the rest of the batch; the
// final FlushAll would never see it.
func (e *Engine) sweepExpired(ctx, workCtx context.Context) {
	results := e.opts.Aggregator.CloseExpired(e.now())
	for i, r := range results {
		if err := e.submit(ctx, r.Mint, task{window: r}); err != nil {
			for _, rest := range results[i:] {
				e.processWindow(workCtx, rest)
			}
			return
		}
	}
}

// flushBundles archives snapshots of the bundles touched since the last
// sweep. Updated slots re-archive; the store keeps the latest snapshot.
func (e *Engine) flushBundles(ctx context.Context) {
	if e.opts.Bundles == nil {
		return
	}
	bundles := e.opts.Aggregator.DrainDirtyBundles()
	if len(bundles) == 0 {
		return
	}
	if err := e.opts.Bundles.InsertBulk(ctx, bundles); err != nil {
		e.logger.Printf("engine: bundle archive failed: %v", err)
	}
}

func (e *Engine) runTick(ctx context.Context) {
	if e.opts.Mute {
		return
	}
	for _, c := range e.opts.Classifiers.OnTick(ctx, e.now()) {
		e.deliver(ctx, c)
	}
}

func (e *Engine) shutdown(ctx context.Context) {
	e.logger.Println("engine: draining queues")

	e.mu.Lock()
	e.stopped = true
	for _, ch := range e.shards {
		close(ch)
	}
	e.mu.Unlock()
	e.wg.Wait()

	// Final flush: every still-open window closes now, then the standing
	// queries get one last look at the index.
	now := e.now()
	for _, r := range e.opts.Aggregator.FlushAll(now) {
		e.processWindow(ctx, r)
	}
	e.runTick(ctx)
	e.flushBundles(ctx)
	e.updateGauges()
	e.logger.Println("engine: stopped")
}

func (e *Engine) process(ctx context.Context, t task) {
	switch {
	case t.creation != nil:
		e.processCreation(ctx, t.creation)
	case t.trade != nil:
		e.processTrade(ctx, t.trade)
	case t.window != nil:
		e.processWindow(ctx, t.window)
	}
}

func (e *Engine) processCreation(ctx context.Context, ev *domain.CreationEvent) {
	start := time.Now()

	if e.opts.Tokens != nil {
		err := e.opts.Tokens.Insert(ctx, ev.Token())
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Redelivered creation: already applied.
			return
		}
		if err != nil {
			e.logger.Printf("engine: token insert failed for %s: %v", ev.Mint, err)
		}
	}

	e.opts.Aggregator.OnTokenCreated(ev)

	if !e.opts.Mute {
		for _, c := range e.opts.Classifiers.OnTokenCreated(ctx, ev) {
			e.deliver(ctx, c)
		}
	}
	e.observeHandled("creation", ev.Timestamp, start)
}

func (e *Engine) processTrade(ctx context.Context, ev *domain.TradeEvent) {
	start := time.Now()

	if e.opts.Trades != nil {
		err := e.opts.Trades.Insert(ctx, ev)
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Redelivered trade: exactly-once application.
			return
		}
		if err != nil {
			e.logger.Printf("engine: trade insert failed for %s: %v", ev.ID, err)
		}
	}

	closed := e.opts.Aggregator.OnTrade(ev)
	if ev.OutOfOrder && e.opts.Metrics != nil {
		e.opts.Metrics.EventsOutOfOrder.Inc()
	}

	e.opts.Index.Record(ev)

	if !e.opts.Mute {
		for _, c := range e.opts.Classifiers.OnTrade(ctx, ev) {
			e.deliver(ctx, c)
		}
	}
	if closed != nil {
		e.processWindow(ctx, closed)
	}
	e.observeHandled("trade", ev.Timestamp, start)
}

func (e *Engine) processWindow(ctx context.Context, r *domain.WindowResult) {
	if e.opts.Windows != nil {
		if err := e.opts.Windows.InsertBulk(ctx, []*domain.WindowResult{r}); err != nil {
			e.logger.Printf("engine: window archive failed for %s seq=%d: %v", r.Mint, r.Seq, err)
		}
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.WindowsClosed.Inc()
	}
	if e.opts.Mute {
		return
	}
	for _, c := range e.opts.Classifiers.OnWindowClosed(ctx, r) {
		e.deliver(ctx, c)
	}
}

func (e *Engine) deliver(ctx context.Context, c *domain.Classification) {
	start := time.Now()
	if err := e.opts.Sink.Deliver(ctx, c); err != nil {
		e.logger.Printf("engine: sink delivery failed for %s: %v", c.ID, err)
		return
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.ClassificationsEmitted.WithLabelValues(string(c.Kind)).Inc()
		e.opts.Metrics.SinkDelivered.Inc()
		e.opts.Metrics.SinkPersistLatency.Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) observeHandled(eventType string, eventTs int64, start time.Time) {
	if e.opts.Metrics == nil {
		return
	}
	e.opts.Metrics.EventHandlingLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	e.opts.Metrics.LastEventTimestamp.Set(float64(eventTs))
}

func (e *Engine) updateGauges() {
	if e.opts.Metrics == nil {
		return
	}
	e.opts.Metrics.ActiveWindows.Set(float64(e.opts.Aggregator.ActiveWindowCount()))
	e.opts.Metrics.TrackedTokens.Set(float64(e.opts.Aggregator.TokenCount()))
	e.opts.Metrics.HighestSlot.Set(float64(e.opts.Aggregator.HighestSlot()))
	e.opts.Metrics.TrackedWallets.Set(float64(e.opts.Index.Size()))
}
