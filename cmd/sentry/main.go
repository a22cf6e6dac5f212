// Package main runs the live token analysis service: it consumes the
// venue websocket stream, maintains windows, bundles and wallet activity,
// runs the behavior classifiers and persists their findings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/classify"
	"token-sentry/internal/domain"
	"token-sentry/internal/engine"
	"token-sentry/internal/event"
	"token-sentry/internal/observability"
	"token-sentry/internal/replay"
	"token-sentry/internal/server"
	"token-sentry/internal/sink"
	"token-sentry/internal/storage"
	chstore "token-sentry/internal/storage/clickhouse"
	"token-sentry/internal/storage/memory"
	"token-sentry/internal/storage/migrations"
	pgstore "token-sentry/internal/storage/postgres"
	"token-sentry/internal/stream"
	"token-sentry/internal/wallets"
)

// allStores holds all storage implementations.
type allStores struct {
	tokens          storage.TokenStore
	trades          storage.TradeEventStore
	classifications storage.ClassificationStore
	windows         storage.WindowResultStore
	bundles         storage.BundleStore
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	wsEndpoint := flag.String("ws-endpoint", os.Getenv("VENUE_WS_ENDPOINT"), "Venue WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", ":8080", "HTTP address for the query API and metrics")
	tickInterval := flag.Duration("tick-interval", 30*time.Second, "Standing-query classifier interval")
	staleAfter := flag.Duration("stale-after", 1*time.Hour, "Unsubscribe tokens quiet for this long")
	skipReplay := flag.Bool("skip-replay", false, "Skip state rebuild from the event archive on startup")

	flag.Parse()

	logger := log.New(os.Stdout, "[sentry] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("", nil)
	agg := aggregate.New(aggregate.DefaultConfig())
	index := wallets.NewIndex(wallets.Config{})
	classifiers := classify.NewSet(classify.DefaultConfig(), stores.tokens, agg, index, logger)
	classifiers.SetErrorHandler(func(classifier string, _ error) {
		metrics.ClassifierErrors.WithLabelValues(classifier).Inc()
	})

	resultSink := sink.NewRetrying(sink.NewStoreSink(stores.classifications), sink.DefaultRetryConfig(), logger)
	resultSink.SetRetryHandler(func(_ *domain.Classification, _ error) {
		metrics.SinkRetries.Inc()
	})
	resultSink.SetUndeliveredHandler(func(_ *domain.Classification, _ error) {
		metrics.SinkUndelivered.Inc()
	})

	if !*skipReplay {
		summary, err := replay.Rebuild(ctx, replay.Options{
			Tokens:     stores.tokens,
			Trades:     stores.trades,
			Aggregator: agg,
			Index:      index,
			Logger:     logger,
		})
		if err != nil {
			logger.Fatalf("State rebuild failed: %v", err)
		}
		logger.Printf("State rebuilt: %d tokens, %d trades, highest slot %d",
			summary.Tokens, summary.Trades, summary.HighestSlot)
	}

	eng := engine.New(engine.Options{
		Aggregator:   agg,
		Index:        index,
		Classifiers:  classifiers,
		Sink:         resultSink,
		Tokens:       stores.tokens,
		Trades:       stores.trades,
		Windows:      stores.windows,
		Bundles:      stores.bundles,
		Metrics:      metrics,
		TickInterval: *tickInterval,
		Logger:       logger,
	})

	streamCfg := stream.DefaultConfig()
	streamCfg.Endpoint = *wsEndpoint
	streamCfg.StaleAfter = *staleAfter

	client, err := stream.NewClient(ctx, streamCfg, logger, metrics)
	if err != nil {
		logger.Fatalf("Failed to connect to venue stream: %v", err)
	}
	defer client.Close()

	if err := client.SubscribeNewTokens(); err != nil {
		logger.Fatalf("Failed to subscribe to new tokens: %v", err)
	}
	if err := rewatchRecentTokens(ctx, stores.tokens, client, *staleAfter); err != nil {
		logger.Printf("Could not rewatch recent tokens: %v", err)
	}

	// Handle shutdown signals
	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go serveHTTP(ctx, *httpAddr, stores, agg, index, logger)
	go consumeStream(ctx, client, eng, metrics, logger)

	err = eng.Run(ctx)
	done <- err

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Engine error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores, running migrations first.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			tokens:          memory.NewTokenStore(),
			trades:          memory.NewTradeEventStore(),
			classifications: memory.NewClassificationStore(),
			windows:         memory.NewWindowResultStore(),
			bundles:         memory.NewBundleStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		tokens:          pgstore.NewTokenStore(pool),
		trades:          pgstore.NewTradeEventStore(pool),
		classifications: pgstore.NewClassificationStore(pool),
		windows:         chstore.NewWindowResultStore(chConn),
		bundles:         chstore.NewBundleStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// rewatchRecentTokens resubscribes trade feeds for tokens created within
// the stale horizon, so a restart keeps following the active set.
func rewatchRecentTokens(ctx context.Context, tokens storage.TokenStore, client *stream.Client, staleAfter time.Duration) error {
	since := time.Now().Add(-staleAfter).UnixMilli()
	recent, err := tokens.GetCreatedSince(ctx, since)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	mints := make([]string, 0, len(recent))
	for _, t := range recent {
		mints = append(mints, t.Mint)
	}
	return client.WatchTokens(mints...)
}

// consumeStream decodes venue messages and feeds the engine. Malformed
// events are counted and dropped, never fatal.
func consumeStream(ctx context.Context, client *stream.Client, eng *engine.Engine, metrics *observability.Metrics, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-client.Messages():
			if !ok {
				return
			}
			// EventsReceived is counted in the stream read loop.
			if err := dispatch(ctx, client, eng, raw); err != nil {
				var malformed *event.MalformedEventError
				if errors.As(err, &malformed) {
					metrics.EventsMalformed.WithLabelValues(malformed.Field).Inc()
					logger.Printf("Dropping malformed event: %v", err)
					continue
				}
				if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
					return
				}
				logger.Printf("Event dispatch failed: %v", err)
				continue
			}
			metrics.EventsValidated.Inc()
		}
	}
}

func dispatch(ctx context.Context, client *stream.Client, eng *engine.Engine, raw json.RawMessage) error {
	m, err := event.Decode(raw)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()

	if m.IsCreation() {
		ev, err := event.ValidateCreation(m, now)
		if err != nil {
			return err
		}
		if err := eng.HandleCreation(ctx, ev); err != nil {
			return err
		}
		return client.WatchTokens(ev.Mint)
	}

	ev, err := event.ValidateTrade(m, now)
	if err != nil {
		return err
	}
	if err := eng.HandleTrade(ctx, ev); err != nil {
		return err
	}
	client.Touch(ev.Mint)
	return nil
}

// serveHTTP mounts the query API and Prometheus metrics on one address.
func serveHTTP(ctx context.Context, addr string, stores *allStores, agg *aggregate.Aggregator, index *wallets.Index, logger *log.Logger) {
	api := server.New(server.Options{
		Tokens:          stores.tokens,
		Classifications: stores.classifications,
		Aggregator:      agg,
		Index:           index,
		Logger:          logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", api.Handler())
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("Starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("HTTP server error: %v", err)
	}
}
