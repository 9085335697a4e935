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

// Package pipeline runs the per-message extraction flow: normalize, select
// a strategy, extract, validate, score, gate. One message in, one record
// plus one verdict out; nothing here touches the mail source or the sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forensiq/intake/internal/extract"
	"github.com/forensiq/intake/internal/models"
	"github.com/forensiq/intake/internal/normalize"
	"github.com/forensiq/intake/internal/review"
	"github.com/forensiq/intake/internal/strategy"
	"github.com/forensiq/intake/internal/validate"
)

// Pipeline processes one message end to end.
type Pipeline struct {
	selector   *strategy.Selector
	extractors *extract.Factory
	validator  *validate.Validator
	gate       *review.Gate
}

// New wires the pipeline stages together.
func New(selector *strategy.Selector, extractors *extract.Factory, validator *validate.Validator, gate *review.Gate) *Pipeline {
	return &Pipeline{
		selector:   selector,
		extractors: extractors,
		validator:  validator,
		gate:       gate,
	}
}

// ProcessMessage runs the full pipeline for a single message. preference
// optionally forces a strategy ("" lets the selector decide). Validation
// failures are not errors: the record comes back tagged by its verdict.
// A non-nil error means the message could not be processed at all and
// should stay unacknowledged for a later retry.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg models.RawMessage, preference string) (*models.AssignmentRecord, *models.ReviewVerdict, error) {
	normalized := normalize.Body(msg.Body)

	strat, err := p.selector.Select(normalized, preference)
	if err != nil {
		return nil, nil, fmt.Errorf("select strategy for message %s: %w", msg.ID, err)
	}

	extractor, err := p.extractors.ForStrategy(strat)
	if err != nil {
		return nil, nil, err
	}

	result, err := extractor.Extract(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("extract message %s: %w", msg.ID, err)
	}

	validation := p.validator.Validate(result.Fields)
	score := p.gate.Score(result.Fields)
	verdict := p.gate.Evaluate(validation, score)

	record := models.FromFields(msg.ID, result.Fields)
	record.Strategy = result.Strategy

	slog.Info("message processed",
		"message_id", msg.ID,
		"strategy", result.Strategy,
		"valid", verdict.IsStructurallyValid,
		"confidence", verdict.ConfidenceScore,
		"needs_review", verdict.NeedsHumanReview,
	)

	return record, &verdict, nil
}
