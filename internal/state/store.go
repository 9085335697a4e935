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

// Package state provides a Postgres-backed journal of per-message pipeline
// outcomes. Every message the intake runner touches ends up here exactly
// once per attempt, which is what the operations dashboard and the failure
// re-drive tooling read.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome classifies what happened to a message.
const (
	OutcomeProcessed = "processed" // extracted, validated, written to the sink
	OutcomeFlagged   = "flagged"   // extracted but routed to human review
	OutcomeFailed    = "failed"    // pipeline error; message left unread for retry
)

// Record is one pipeline outcome persisted in Postgres.
type Record struct {
	ID         int64
	MessageID  string
	Subject    string
	Strategy   string
	Outcome    string
	Confidence float64
	Detail     string // violation summary or error text
	SinkRef    string // sink record ID, when written
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store provides CRUD operations for outcome records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an outcome store backed by the given Postgres pool.
// It ensures the outcomes table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure outcome schema: %w", err)
	}
	slog.Info("outcome store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS message_outcomes (
			id         BIGSERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			subject    TEXT DEFAULT '',
			strategy   TEXT DEFAULT '',
			outcome    TEXT NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0,
			detail     TEXT DEFAULT '',
			sink_ref   TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_outcome ON message_outcomes(outcome);
		CREATE INDEX IF NOT EXISTS idx_outcomes_created ON message_outcomes(created_at);
	`)
	return err
}

// upsert writes an outcome keyed on message_id. A retried message overwrites
// its previous failed row.
func (s *Store) upsert(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_outcomes
			(message_id, subject, strategy, outcome, confidence, detail, sink_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE SET
			subject    = EXCLUDED.subject,
			strategy   = EXCLUDED.strategy,
			outcome    = EXCLUDED.outcome,
			confidence = EXCLUDED.confidence,
			detail     = EXCLUDED.detail,
			sink_ref   = EXCLUDED.sink_ref,
			updated_at = NOW()
	`, r.MessageID, r.Subject, r.Strategy, r.Outcome, r.Confidence, r.Detail, r.SinkRef)
	return err
}

// MarkProcessed records a message that was extracted, validated, and written
// to the sink.
func (s *Store) MarkProcessed(ctx context.Context, messageID, subject, strategy string, confidence float64, sinkRef string) error {
	return s.upsert(ctx, Record{
		MessageID:  messageID,
		Subject:    subject,
		Strategy:   strategy,
		Outcome:    OutcomeProcessed,
		Confidence: confidence,
		SinkRef:    sinkRef,
	})
}

// MarkFlagged records a message routed to human review.
func (s *Store) MarkFlagged(ctx context.Context, messageID, subject, strategy string, confidence float64, detail string) error {
	return s.upsert(ctx, Record{
		MessageID:  messageID,
		Subject:    subject,
		Strategy:   strategy,
		Outcome:    OutcomeFlagged,
		Confidence: confidence,
		Detail:     detail,
	})
}

// MarkFailed records a pipeline error. The message stays unread in the
// mailbox, so the next run will pick it up again.
func (s *Store) MarkFailed(ctx context.Context, messageID, subject, detail string) error {
	return s.upsert(ctx, Record{
		MessageID: messageID,
		Subject:   subject,
		Outcome:   OutcomeFailed,
		Detail:    detail,
	})
}

// Get retrieves the outcome for a single message.
func (s *Store) Get(ctx context.Context, messageID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, message_id, subject, strategy, outcome,
		       confidence, detail, sink_ref, created_at, updated_at
		FROM message_outcomes
		WHERE message_id = $1
	`, messageID)
	return scanRecord(row)
}

// ListByOutcome returns the most recent records with the given outcome.
func (s *Store) ListByOutcome(ctx context.Context, outcome string, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, subject, strategy, outcome,
		       confidence, detail, sink_ref, created_at, updated_at
		FROM message_outcomes
		WHERE outcome = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, outcome, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.MessageID, &r.Subject, &r.Strategy, &r.Outcome,
		&r.Confidence, &r.Detail, &r.SinkRef, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// collectRecords scans multiple rows into a slice of Records.
func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.MessageID, &r.Subject, &r.Strategy, &r.Outcome,
			&r.Confidence, &r.Detail, &r.SinkRef, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
