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

// Package queue publishes flagged assignments to Redis for the human
// review dashboard. Reviewers drain the queue, correct the record, and
// resubmit it to the sink.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/forensiq/intake/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher sends review tasks to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// reviewTask is the envelope reviewers consume. The record carries the
// extracted fields as-written; the verdict explains why it was flagged.
type reviewTask struct {
	ID       string                   `json:"id"`
	QueuedAt time.Time                `json:"queued_at"`
	Record   *models.AssignmentRecord `json:"record"`
	Verdict  *models.ReviewVerdict    `json:"verdict"`
}

// PublishForReview serialises a flagged assignment and pushes it onto the
// review queue.
func (p *Publisher) PublishForReview(ctx context.Context, record *models.AssignmentRecord, verdict *models.ReviewVerdict) error {
	task := reviewTask{
		ID:       uuid.New().String(),
		QueuedAt: time.Now().UTC(),
		Record:   record,
		Verdict:  verdict,
	}

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal review task: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(taskJSON)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published assignment for review",
		"task_id", task.ID,
		"message_id", record.MessageID,
		"confidence", verdict.ConfidenceScore,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
