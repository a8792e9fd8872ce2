// Package main provides a one-shot risk report for a tracked token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"pumpfun-sentinel/internal/feed"
	"pumpfun-sentinel/internal/storage"
	pgstore "pumpfun-sentinel/internal/storage/postgres"
	"pumpfun-sentinel/internal/telegram"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	timeout := flag.Duration("timeout", 10*time.Second, "Query timeout")
	flag.Parse()

	address := flag.Arg(0)
	if address == "" {
		fmt.Fprintln(os.Stderr, "Usage: scan [flags] <token-address>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn (or POSTGRES_DSN) is required")
		os.Exit(2)
	}
	if err := feed.ValidateAddress(address); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid token address: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	tokens := pgstore.NewTokenStore(pool)

	token, err := tokens.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "Token not tracked: only launches seen by the feed can be scanned")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error loading token: %v\n", err)
		os.Exit(1)
	}
	assessment, err := tokens.GetAssessment(ctx, address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading assessment: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%s)\n", token.Symbol, token.Name)
	fmt.Printf("Address:       %s\n", token.Address)
	fmt.Printf("Price:         %s\n", telegram.FormatUsd(token.PriceUsd))
	fmt.Printf("Market cap:    %s\n", telegram.FormatUsd(token.MarketCapUsd))
	fmt.Printf("1h volume:     %s (%d swaps)\n", telegram.FormatUsd(token.Volume1hUsd), token.Swaps1h)
	fmt.Printf("Holders:       %d\n", token.HolderCount)
	fmt.Printf("Bonding curve: %.1f%%\n", token.ProgressPct)
	fmt.Printf("First seen:    %s\n", time.UnixMilli(token.FirstSeenAt).UTC().Format(time.RFC3339))
	fmt.Println()
	fmt.Printf("Risk level:    %s\n", assessment.OverallRiskLevel)
	fmt.Printf("Wash trading:  %v\n", assessment.WashTradingFlag)
	fmt.Printf("Creator holds: %.1f%%\n", assessment.CreatorBalanceRatePct)
	fmt.Printf("Snipers:       %d\n", assessment.SniperCount)
	fmt.Printf("Top 10 hold:   %.1f%%\n", assessment.Top10HolderPct)
}
