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

// Package review computes the confidence score for an extracted record and
// decides whether it must be escalated to a human. The gate is advisory:
// flagged records are returned tagged, never dropped.
package review

import (
	"fmt"
	"strings"

	"github.com/forensiq/intake/internal/models"
	"github.com/forensiq/intake/internal/validate"
)

const (
	// DefaultEmptyFieldPenalty is deducted per present-but-empty optional
	// field. A tunable with no intrinsic meaning; override via config.
	DefaultEmptyFieldPenalty = 0.02

	// DefaultThreshold is the confidence floor below which a record is
	// escalated. Same caveat as the penalty.
	DefaultThreshold = 0.85
)

// Gate scores confidence and produces the review verdict.
type Gate struct {
	penalty   float64
	threshold float64
}

// NewGate creates a review gate. Non-positive arguments fall back to the
// defaults.
func NewGate(penalty, threshold float64) *Gate {
	if penalty <= 0 {
		penalty = DefaultEmptyFieldPenalty
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{penalty: penalty, threshold: threshold}
}

// Score starts at 1.0 and deducts the configured penalty for each optional
// field that is present but empty. A missing optional key costs nothing —
// only an extracted-then-empty value counts. The result is clamped to [0,1].
func (g *Gate) Score(fields map[string]any) float64 {
	score := 1.0
	for _, field := range models.OptionalFields {
		if presentButEmpty(fields, field) {
			score -= g.penalty
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Evaluate combines the validation result and confidence score into a
// verdict. Re-running it on the same inputs yields the same decision.
func (g *Gate) Evaluate(validation validate.Result, score float64) models.ReviewVerdict {
	verdict := models.ReviewVerdict{
		IsStructurallyValid: validation.Valid,
		ConfidenceScore:     score,
		NeedsHumanReview:    !validation.Valid || score < g.threshold,
	}

	verdict.Reasons = append(verdict.Reasons, validation.Violations...)
	if score < g.threshold {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("confidence %.2f below review threshold %.2f", score, g.threshold))
	}

	return verdict
}

// presentButEmpty reports whether the field key exists with an empty
// extracted value. Absent keys cost nothing, and neither do nil values —
// nil means the extractor looked and found nothing, which for an optional
// field is ordinary absence, not a suspicious empty extraction.
func presentButEmpty(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
