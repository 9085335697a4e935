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

// Package batch drives the intake run: list unread messages, fan them out
// to a bounded pool of workers, and route each pipeline result to the sink
// or the review queue. A message is acknowledged (marked read) only after
// its result has been durably handed off, so a crash mid-run re-delivers
// rather than loses.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forensiq/intake/internal/models"
)

// MailSource lists, fetches, and acknowledges unread messages.
type MailSource interface {
	ListUnread(ctx context.Context, maxResults int) ([]models.MessageRef, error)
	FetchFull(ctx context.Context, id string) (*models.RawMessage, error)
	MarkRead(ctx context.Context, id string) error
}

// Processor runs the extraction pipeline for one message.
type Processor interface {
	ProcessMessage(ctx context.Context, msg models.RawMessage, preference string) (*models.AssignmentRecord, *models.ReviewVerdict, error)
}

// Deduper remembers which messages have already completed a run.
type Deduper interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Mark(ctx context.Context, messageID string) error
}

// RecordSink stores accepted assignment records.
type RecordSink interface {
	Insert(ctx context.Context, rec *models.AssignmentRecord) (string, error)
}

// ReviewQueue holds flagged records for human reviewers.
type ReviewQueue interface {
	PublishForReview(ctx context.Context, rec *models.AssignmentRecord, verdict *models.ReviewVerdict) error
}

// OutcomeJournal records what happened to each message.
type OutcomeJournal interface {
	MarkProcessed(ctx context.Context, messageID, subject, strategy string, confidence float64, sinkRef string) error
	MarkFlagged(ctx context.Context, messageID, subject, strategy string, confidence float64, detail string) error
	MarkFailed(ctx context.Context, messageID, subject, detail string) error
}

// Runner executes one intake run over the unread mailbox.
type Runner struct {
	mail      MailSource
	processor Processor
	dedup     Deduper
	sink      RecordSink
	reviews   ReviewQueue
	journal   OutcomeJournal

	concurrency int
	preference  string // forced strategy, "" for automatic selection
}

// RunnerConfig holds dependencies for the intake runner.
type RunnerConfig struct {
	Mail        MailSource
	Processor   Processor
	Dedup       Deduper
	Sink        RecordSink
	Reviews     ReviewQueue
	Journal     OutcomeJournal
	Concurrency int
	Preference  string
}

// NewRunner creates an intake runner.
func NewRunner(cfg RunnerConfig) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		mail:        cfg.Mail,
		processor:   cfg.Processor,
		dedup:       cfg.Dedup,
		sink:        cfg.Sink,
		reviews:     cfg.Reviews,
		journal:     cfg.Journal,
		concurrency: concurrency,
		preference:  cfg.Preference,
	}
}

// Result summarises a completed intake run.
type Result struct {
	Listed    int
	Skipped   int // already seen, or gone from the mailbox
	Processed int // accepted and written to the sink
	Flagged   int // routed to human review
	Failed    int // pipeline or handoff error; left unread
	Elapsed   time.Duration
}

// ProcessUnread lists unread messages and processes up to maxResults of
// them. Per-message failures are counted, logged, and left unread for the
// next run; they never abort the run.
func (r *Runner) ProcessUnread(ctx context.Context, maxResults int) (*Result, error) {
	start := time.Now()

	refs, err := r.mail.ListUnread(ctx, maxResults)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	slog.Info("starting intake run",
		"unread", len(refs),
		"concurrency", r.concurrency,
	)

	result := &Result{Listed: len(refs)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.concurrency)
	)

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return result, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := r.handleMessage(ctx, id)

			mu.Lock()
			switch outcome {
			case outcomeSkipped:
				result.Skipped++
			case outcomeProcessed:
				result.Processed++
			case outcomeFlagged:
				result.Flagged++
			case outcomeFailed:
				result.Failed++
			}
			mu.Unlock()
		}(ref.ID)
	}

	wg.Wait()
	result.Elapsed = time.Since(start)

	slog.Info("intake run complete",
		"listed", result.Listed,
		"skipped", result.Skipped,
		"processed", result.Processed,
		"flagged", result.Flagged,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

type messageOutcome int

const (
	outcomeSkipped messageOutcome = iota
	outcomeProcessed
	outcomeFlagged
	outcomeFailed
)

// handleMessage runs one message through dedup, fetch, pipeline, handoff,
// and acknowledgement. The order is load-bearing: the sink write or review
// publish happens before MarkRead, and the dedup mark happens after it.
func (r *Runner) handleMessage(ctx context.Context, id string) messageOutcome {
	seen, err := r.dedup.Seen(ctx, id)
	if err != nil {
		// Treat a dedup outage as "not seen": reprocessing is safe,
		// dropping is not.
		slog.Warn("dedup check failed", "message_id", id, "error", err)
	} else if seen {
		slog.Debug("message already processed", "message_id", id)
		return outcomeSkipped
	}

	msg, err := r.mail.FetchFull(ctx, id)
	if err != nil {
		slog.Error("fetch message failed", "message_id", id, "error", err)
		r.journalFailed(ctx, id, "", fmt.Sprintf("fetch: %v", err))
		return outcomeFailed
	}
	if msg == nil {
		// Deleted between listing and fetch.
		slog.Debug("message gone from mailbox", "message_id", id)
		return outcomeSkipped
	}

	record, verdict, err := r.processor.ProcessMessage(ctx, *msg, r.preference)
	if err != nil {
		slog.Error("pipeline failed", "message_id", id, "error", err)
		r.journalFailed(ctx, id, msg.Subject, err.Error())
		return outcomeFailed
	}

	strategyName := string(record.Strategy)
	if verdict.NeedsHumanReview {
		if err := r.reviews.PublishForReview(ctx, record, verdict); err != nil {
			slog.Error("review publish failed", "message_id", id, "error", err)
			r.journalFailed(ctx, id, msg.Subject, fmt.Sprintf("review publish: %v", err))
			return outcomeFailed
		}
		if err := r.journal.MarkFlagged(ctx, id, msg.Subject, strategyName, verdict.ConfidenceScore, reasonSummary(verdict)); err != nil {
			slog.Warn("journal write failed", "message_id", id, "error", err)
		}
	} else {
		sinkRef, err := r.sink.Insert(ctx, record)
		if err != nil {
			slog.Error("sink insert failed", "message_id", id, "error", err)
			r.journalFailed(ctx, id, msg.Subject, fmt.Sprintf("sink insert: %v", err))
			return outcomeFailed
		}
		if err := r.journal.MarkProcessed(ctx, id, msg.Subject, strategyName, verdict.ConfidenceScore, sinkRef); err != nil {
			slog.Warn("journal write failed", "message_id", id, "error", err)
		}
	}

	// Everything downstream succeeded; acknowledge. If this fails the
	// message is redelivered next run and the sink/queue sees it again,
	// which is the at-least-once trade we accept.
	if err := r.mail.MarkRead(ctx, id); err != nil {
		slog.Error("mark read failed", "message_id", id, "error", err)
		return outcomeFailed
	}

	if err := r.dedup.Mark(ctx, id); err != nil {
		slog.Warn("dedup mark failed", "message_id", id, "error", err)
	}

	if verdict.NeedsHumanReview {
		return outcomeFlagged
	}
	return outcomeProcessed
}

// journalFailed records a failure, tolerating journal outages.
func (r *Runner) journalFailed(ctx context.Context, id, subject, detail string) {
	if err := r.journal.MarkFailed(ctx, id, subject, detail); err != nil {
		slog.Warn("journal write failed", "message_id", id, "error", err)
	}
}

// reasonSummary joins verdict reasons for the journal detail column.
func reasonSummary(v *models.ReviewVerdict) string {
	if len(v.Reasons) == 0 {
		return ""
	}
	summary := v.Reasons[0]
	for _, reason := range v.Reasons[1:] {
		summary += "; " + reason
	}
	return summary
}
