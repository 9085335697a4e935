// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Forensiq Intake — One-Shot Batch Command
//
// Standalone CLI tool that runs a single intake pass over the unread
// mailbox and exits. Intended for cron-style deployments and for draining
// a backlog after an outage.
//
// Usage:
//
//	go run ./cmd/batch/ [--max 100] [--strategy deterministic|remote-model|local-model]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/forensiq/intake/internal/batch"
	"github.com/forensiq/intake/internal/config"
	"github.com/forensiq/intake/internal/dedup"
	"github.com/forensiq/intake/internal/extract"
	"github.com/forensiq/intake/internal/llm"
	"github.com/forensiq/intake/internal/mail"
	"github.com/forensiq/intake/internal/pipeline"
	"github.com/forensiq/intake/internal/queue"
	"github.com/forensiq/intake/internal/review"
	"github.com/forensiq/intake/internal/sink"
	"github.com/forensiq/intake/internal/state"
	"github.com/forensiq/intake/internal/strategy"
	"github.com/forensiq/intake/internal/validate"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	maxFlag := flag.Int("max", 0, "Maximum unread messages to process (0 = config default)")
	strategyFlag := flag.String("strategy", "", "Force an extraction strategy (optional)")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	maxResults := cfg.MaxResults
	if *maxFlag > 0 {
		maxResults = *maxFlag
	}
	preference := cfg.Preference
	if *strategyFlag != "" {
		preference = *strategyFlag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	journal, err := state.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise outcome store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	reviews := queue.NewPublisher(rdb, cfg.ReviewQueue)
	if err := reviews.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	filter := dedup.NewFilter(rdb)

	// --- Gmail Client ---
	tokens := mail.NewTokenStore(cfg.Mail.ClientID, cfg.Mail.ClientSecret, cfg.Mail.TokenPath)
	mailHTTP, err := tokens.HTTPClient(ctx)
	if err != nil {
		slog.Error("failed to build authorised mail client", "error", err)
		os.Exit(1)
	}
	mailbox := mail.NewClient(mailHTTP, cfg.Mail.BaseURL, cfg.RetryMaxAttempts, cfg.RetryBackoffBase)

	// --- Pipeline ---
	httpClient := &http.Client{Timeout: cfg.Model.AttemptTimeout}

	var remote, local extract.Completer
	if cfg.Model.HostedAPIKey != "" {
		remote = llm.NewHosted(httpClient, cfg.Model.HostedBaseURL, cfg.Model.HostedAPIKey, cfg.Model.HostedModel)
	}
	if cfg.Model.LocalEndpoint != "" {
		local = llm.NewSelfHosted(httpClient, cfg.Model.LocalEndpoint, cfg.Model.LocalModel)
	}

	factory := extract.NewFactory(remote, local, extract.ModelOptions{
		Temperature:    cfg.Model.Temperature,
		MaxTokens:      cfg.Model.MaxTokens,
		MaxAttempts:    cfg.Model.MaxAttempts,
		BackoffBase:    cfg.Model.BackoffBase,
		AttemptTimeout: cfg.Model.AttemptTimeout,
	})

	proc := pipeline.New(
		strategy.NewSelector(cfg.Model.Backend == "selfhosted"),
		factory,
		validate.NewValidator(),
		review.NewGate(cfg.Review.EmptyFieldPenalty, cfg.Review.Threshold),
	)

	quickbase := sink.NewClient(&http.Client{Timeout: 30 * time.Second}, sink.Config{
		APIURL:        cfg.Sink.APIURL,
		RealmHostname: cfg.Sink.RealmHostname,
		UserToken:     cfg.Sink.UserToken,
		TableID:       cfg.Sink.TableID,
		MaxAttempts:   cfg.RetryMaxAttempts,
		BackoffBase:   cfg.RetryBackoffBase,
	})

	runner := batch.NewRunner(batch.RunnerConfig{
		Mail:        mailbox,
		Processor:   proc,
		Dedup:       filter,
		Sink:        quickbase,
		Reviews:     reviews,
		Journal:     journal,
		Concurrency: cfg.Concurrency,
		Preference:  preference,
	})

	result, err := runner.ProcessUnread(ctx, maxResults)
	if err != nil {
		slog.Error("intake run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("listed=%d processed=%d flagged=%d skipped=%d failed=%d elapsed=%s\n",
		result.Listed, result.Processed, result.Flagged, result.Skipped, result.Failed, result.Elapsed)

	if result.Failed > 0 {
		os.Exit(2)
	}
}
