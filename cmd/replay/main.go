// Package main rebuilds aggregation state from the raw event archive and
// prints a reconciliation summary. Useful for verifying the archive after
// an unclean shutdown without starting the live service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/replay"
	"token-sentry/internal/storage/migrations"
	pgstore "token-sentry/internal/storage/postgres"
	"token-sentry/internal/wallets"
)

type report struct {
	Tokens        int   `json:"tokens"`
	Trades        int   `json:"trades"`
	OutOfOrder    int   `json:"out_of_order"`
	WindowsClosed int   `json:"windows_closed"`
	HighestSlot   int64 `json:"highest_slot"`
	OpenWindows   int   `json:"open_windows"`
	Wallets       int   `json:"wallets"`
}

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations failed: %v", err)
	}

	agg := aggregate.New(aggregate.DefaultConfig())
	index := wallets.NewIndex(wallets.Config{})

	summary, err := replay.Rebuild(ctx, replay.Options{
		Tokens:     pgstore.NewTokenStore(pool),
		Trades:     pgstore.NewTradeEventStore(pool),
		Aggregator: agg,
		Index:      index,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("Rebuild failed: %v", err)
	}

	out := report{
		Tokens:        summary.Tokens,
		Trades:        summary.Trades,
		OutOfOrder:    summary.OutOfOrder,
		WindowsClosed: summary.WindowsClosed,
		HighestSlot:   summary.HighestSlot,
		OpenWindows:   agg.ActiveWindowCount(),
		Wallets:       index.Size(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatalf("Failed to encode summary: %v", err)
	}
}
