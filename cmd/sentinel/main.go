// Package main runs the unified sentinel service:
// - Poller (continuous): feed intake, claim, risk assessment
// - Dispatcher: alert fan-out to subscribed Telegram users
// - Bot: subscriber commands (/subscribe, /scan, ...)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pumpfun-sentinel/internal/dispatch"
	"pumpfun-sentinel/internal/feed"
	"pumpfun-sentinel/internal/observability"
	"pumpfun-sentinel/internal/poller"
	"pumpfun-sentinel/internal/registry"
	"pumpfun-sentinel/internal/risk"
	"pumpfun-sentinel/internal/storage"
	chstore "pumpfun-sentinel/internal/storage/clickhouse"
	"pumpfun-sentinel/internal/storage/memory"
	"pumpfun-sentinel/internal/storage/migrations"
	pgstore "pumpfun-sentinel/internal/storage/postgres"
	"pumpfun-sentinel/internal/telegram"
)

// allStores holds all storage implementations.
type allStores struct {
	tokens      storage.TokenStore
	subscribers storage.SubscriberStore
	jobs        storage.JobStore
	cursors     storage.CursorStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Launch feed HTTP endpoint")
	streamEndpoint := flag.String("stream-endpoint", os.Getenv("FEED_STREAM_ENDPOINT"), "Optional launch feed WebSocket endpoint")
	feedAPIKey := flag.String("feed-api-key", os.Getenv("FEED_API_KEY"), "Launch feed API key")
	botToken := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse connection string for the alert archive")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	pollInterval := flag.Duration("poll-interval", poller.DefaultInterval, "Feed poll interval")
	workers := flag.Int("workers", dispatch.DefaultWorkers, "Concurrent delivery workers")
	freeScans := flag.Int64("free-daily-scans", registry.DefaultTierLimits().FreeDailyScans, "Daily scan quota for free subscribers")
	premiumScans := flag.Int64("premium-daily-scans", registry.DefaultTierLimits().PremiumDailyScans, "Daily scan quota for premium subscribers")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[sentinel] ", log.LstdFlags)

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if *botToken == "" {
		logger.Fatal("--telegram-token is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Optional ClickHouse archive.
	var archive *chstore.AlertArchive
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()
		archive = chstore.NewAlertArchive(chConn)
		logger.Println("Alert archive enabled")
	}

	limits := registry.TierLimits{
		FreeDailyScans:    *freeScans,
		PremiumDailyScans: *premiumScans,
	}
	reg := registry.New(stores.subscribers, limits, nil)

	channel, err := telegram.NewChannel(*botToken, telegram.WithLogger(logger))
	if err != nil {
		logger.Fatalf("Failed to connect to Telegram: %v", err)
	}

	dispatchOpts := dispatch.Options{
		Jobs:     stores.jobs,
		Registry: reg,
		Channel:  channel,
		Render:   telegram.Render,
		Workers:  *workers,
		Logger:   logger,
	}
	if archive != nil {
		dispatchOpts.Archive = archive
	}
	dispatcher := dispatch.New(dispatchOpts)

	// Finish deliveries interrupted by the previous shutdown before
	// taking new work.
	if stats, err := dispatcher.ResumeRetrying(ctx, stores.tokens); err != nil {
		logger.Printf("Resume interrupted deliveries: %v", err)
	} else if stats.Delivered+stats.Failed+stats.Retrying > 0 {
		logger.Printf("Resumed interrupted deliveries: delivered=%d failed=%d retrying=%d",
			stats.Delivered, stats.Failed, stats.Retrying)
	}

	feedClient := feed.NewClient(*feedEndpoint, feed.WithAPIKey(*feedAPIKey))

	var stream *feed.Stream
	if *streamEndpoint != "" {
		stream = feed.NewStream(*streamEndpoint, nil, logger)
	}

	pollerOpts := poller.Options{
		Source:     feedClient,
		Stream:     stream,
		Tokens:     stores.tokens,
		Cursors:    stores.cursors,
		Assessor:   risk.NewAssessor(risk.DefaultThresholds()),
		Dispatcher: dispatcher,
		Interval:   *pollInterval,
		Logger:     logger,
	}
	if archive != nil {
		pollerOpts.Archive = archive
	}
	p := poller.New(pollerOpts)

	bot := telegram.NewBot(channel, reg, stores.tokens, logger)

	// Handle shutdown signals
	done := make(chan struct{})
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

	go startHTTPServer(*metricsAddr, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("poller: %w", err)
		} else {
			errCh <- nil
		}
	}()
	go func() {
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("bot: %w", err)
		} else {
			errCh <- nil
		}
	}()

	var runErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
			cancel()
		}
	}
	close(done)

	if runErr != nil {
		logger.Fatalf("Server error: %v", runErr)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			tokens:      memory.NewTokenStore(),
			subscribers: memory.NewSubscriberStore(),
			jobs:        memory.NewJobStore(),
			cursors:     memory.NewCursorStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &allStores{
		tokens:      pgstore.NewTokenStore(pool),
		subscribers: pgstore.NewSubscriberStore(pool),
		jobs:        pgstore.NewJobStore(pool),
		cursors:     pgstore.NewCursorStore(pool),
	}
	return stores, pool.Close, nil
}

// startHTTPServer serves Prometheus metrics and a liveness endpoint.
func startHTTPServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	logger.Printf("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("Metrics server: %v", err)
	}
}

// loadEnvFile loads .env into the environment without overriding
// variables that are already set.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
