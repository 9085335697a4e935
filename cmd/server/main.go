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

// Forensiq Intake Service
//
// Entry point for the assignment intake service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL, Redis, Gmail, and the model backend
//  3. Polls the mailbox for unread assignment emails on an interval
//  4. Runs each message through the extraction pipeline
//  5. Writes accepted records to Quickbase, flags the rest for review
//  6. Serves a health endpoint and shuts down gracefully on SIGTERM/SIGINT
package main

import (
	"context"
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

	slog.Info("starting forensiq intake service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"model_backend", cfg.Model.Backend,
		"poll_interval", cfg.PollInterval,
		"concurrency", cfg.Concurrency,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

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

	reviews := queue.NewPublisher(rdb, cfg.ReviewQueue)
	if err := reviews.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

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
	runner := batch.NewRunner(batch.RunnerConfig{
		Mail:        mailbox,
		Processor:   buildPipeline(cfg),
		Dedup:       filter,
		Sink:        buildSink(cfg),
		Reviews:     reviews,
		Journal:     journal,
		Concurrency: cfg.Concurrency,
		Preference:  cfg.Preference,
	})

	// --- Poll Loop ---
	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			if _, err := runner.ProcessUnread(ctx, cfg.MaxResults); err != nil {
				slog.Error("intake run failed", "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// --- Health Check Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := reviews.Ping(r.Context()); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := pgPool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop the poll loop

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("intake service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("intake service stopped")
}

// buildPipeline wires the per-message extraction stages from config.
func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
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

	selector := strategy.NewSelector(cfg.Model.Backend == "selfhosted")
	gate := review.NewGate(cfg.Review.EmptyFieldPenalty, cfg.Review.Threshold)

	return pipeline.New(selector, factory, validate.NewValidator(), gate)
}

// buildSink creates the Quickbase client from config.
func buildSink(cfg *config.Config) *sink.Client {
	return sink.NewClient(&http.Client{Timeout: 30 * time.Second}, sink.Config{
		APIURL:        cfg.Sink.APIURL,
		RealmHostname: cfg.Sink.RealmHostname,
		UserToken:     cfg.Sink.UserToken,
		TableID:       cfg.Sink.TableID,
		MaxAttempts:   cfg.RetryMaxAttempts,
		BackoffBase:   cfg.RetryBackoffBase,
	})
}
