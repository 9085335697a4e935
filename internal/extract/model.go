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

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forensiq/intake/internal/llm"
	"github.com/forensiq/intake/internal/models"
	"github.com/forensiq/intake/internal/retry"
)

// Completer is the text-completion capability a model-backed extractor
// needs. Both the hosted and self-hosted llm clients satisfy it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error)
}

// ModelOptions tunes a model-backed extractor.
type ModelOptions struct {
	Temperature    float64       // deterministic-leaning sampling, typically 0.2
	MaxTokens      int           // output length cap, typically 500
	MaxAttempts    int           // retry budget for transient backend failures
	BackoffBase    time.Duration // base of the randomized doubling backoff
	AttemptTimeout time.Duration // wall-clock cap per attempt
}

// ModelExtractor extracts fields by asking a language-model backend for a
// JSON rendition of the email, then parsing the first brace-delimited span
// of the reply. Completeness of the result is the validator's concern, not
// this extractor's.
type ModelExtractor struct {
	completer Completer
	strategy  models.Strategy
	opts      ModelOptions
}

// NewModelExtractor wraps a Completer as an Extractor. strategy records
// which variant (remote or local) this instance represents.
func NewModelExtractor(completer Completer, strategy models.Strategy, opts ModelOptions) *ModelExtractor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &ModelExtractor{
		completer: completer,
		strategy:  strategy,
		opts:      opts,
	}
}

// Extract runs the completion call with retry/backoff and parses the reply.
func (m *ModelExtractor) Extract(ctx context.Context, text string) (*models.ExtractionResult, error) {
	prompt := buildPrompt(text)

	var reply string
	err := retry.Do(ctx, m.opts.MaxAttempts, retry.Exponential(m.opts.BackoffBase), func(ctx context.Context) error {
		attemptCtx := ctx
		if m.opts.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, m.opts.AttemptTimeout)
			defer cancel()
		}

		out, err := m.completer.Complete(attemptCtx, systemInstruction, prompt, m.opts.Temperature, m.opts.MaxTokens)
		if err != nil {
			if isTransient(err) {
				slog.Warn("model call failed, will retry", "strategy", m.strategy, "error", err)
				return err
			}
			return retry.Permanent(err)
		}

		reply = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, err)
	}

	fields, err := parseReply(reply)
	if err != nil {
		return nil, err
	}

	return &models.ExtractionResult{
		Fields:   fields,
		Strategy: m.strategy,
	}, nil
}

// isTransient classifies a completion failure as retryable. Timeouts count
// as transient; rate-limit and server-error responses do too.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var be *llm.BackendError
	if errors.As(err, &be) {
		return be.Temporary()
	}
	return false
}

// groupMapping maps one nested response group to flat canonical fields.
var groupMapping = map[string]map[string]string{
	"Insured Information": {
		"Name":             models.FieldInsuredName,
		"Contact #":        models.FieldInsuredContact,
		"Loss Address":     models.FieldLossAddress,
		"Public Adjuster":  models.FieldPublicAdjuster,
		"Ownership":        models.FieldOwnership,
		"Landlord Contact": models.FieldLandlordContact,
	},
	"Adjuster Information": {
		"Adjuster Name":         models.FieldAdjusterName,
		"Adjuster Phone Number": models.FieldAdjusterPhone,
		"Adjuster Email":        models.FieldAdjusterEmail,
		"Job Title":             models.FieldJobTitle,
		"Address":               models.FieldAdjusterAddress,
		"Policy Number":         models.FieldPolicyNumber,
	},
	"Assignment Information": {
		"Date of Loss/Occurrence":        models.FieldDateOfLoss,
		"Cause of loss":                  models.FieldCauseOfLoss,
		"Facts of Loss":                  models.FieldFactsOfLoss,
		"Loss Description":               models.FieldLossDescription,
		"Residence Occupied During Loss": models.FieldResidenceOccupied,
		"Someone home at time of damage": models.FieldSomeoneHome,
		"Repair or Mitigation Progress":  models.FieldRepairProgress,
		"Type":                           models.FieldType,
		"Inspection type":                models.FieldInspectionType,
	},
	"Assignment Type": {
		"Wind":       models.FieldTypeWind,
		"Structural": models.FieldTypeStructural,
		"Hail":       models.FieldTypeHail,
		"Foundation": models.FieldTypeFoundation,
		"Other":      models.FieldTypeOther,
	},
}

// topLevelFields are response keys copied through without nesting.
var topLevelFields = []string{
	models.FieldInsuranceCompany,
	models.FieldHandler,
	models.FieldCarrierClaimNumber,
	models.FieldOtherDetails,
	models.FieldAdditionalInstructions,
	models.FieldAttachments,
}

// parseReply locates the first brace-delimited span in the model reply,
// decodes it, and flattens the nested groups onto the canonical field set.
// Keys the model omitted stay absent from the result.
func parseReply(reply string) (map[string]any, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrResponseParse)
	}

	var nested map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &nested); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResponseParse, err)
	}

	fields := make(map[string]any, len(patternTable))
	for _, key := range topLevelFields {
		if v, ok := nested[key]; ok {
			fields[key] = v
		}
	}
	for group, mapping := range groupMapping {
		sub, ok := nested[group].(map[string]any)
		if !ok {
			continue
		}
		for key, canonical := range mapping {
			if v, ok := sub[key]; ok {
				fields[canonical] = v
			}
		}
	}

	return fields, nil
}
