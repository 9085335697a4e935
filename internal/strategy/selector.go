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

// Package strategy decides which extractor handles a given message.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forensiq/intake/internal/models"
)

// ErrUnknownStrategy is returned when an explicit preference is not one of
// the known strategy names. This is a caller bug, not a message failure.
var ErrUnknownStrategy = errors.New("unknown extraction strategy")

// sectionMarkers are the labels present in well-formatted assignment emails.
// The applicability test is all-or-nothing: every marker must appear for the
// deterministic extractor to be chosen. A partial match always routes to a
// model-backed extractor — the tie-break is deliberately binary, never
// weighted or fuzzy.
var sectionMarkers = []string{
	"requesting party insurance company",
	"carrier claim number",
	"insured information",
	"adjuster information",
	"assignment information",
	"additional details/special instructions",
}

// Selector chooses an extraction strategy per message.
type Selector struct {
	useLocalModel bool
}

// NewSelector creates a strategy selector. useLocalModel picks which
// model-backed variant handles unstructured mail; there is no runtime
// auto-detection between the two backends.
func NewSelector(useLocalModel bool) *Selector {
	return &Selector{useLocalModel: useLocalModel}
}

// Select returns the strategy for the given normalized text. A non-empty
// preference is honored unconditionally if it names a known strategy and
// fails with ErrUnknownStrategy otherwise.
func (s *Selector) Select(text, preference string) (models.Strategy, error) {
	if preference != "" {
		switch models.Strategy(preference) {
		case models.StrategyDeterministic, models.StrategyRemoteModel, models.StrategyLocalModel:
			return models.Strategy(preference), nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, preference)
		}
	}

	if deterministicApplicable(text) {
		return models.StrategyDeterministic, nil
	}

	chosen := models.StrategyRemoteModel
	if s.useLocalModel {
		chosen = models.StrategyLocalModel
	}

	slog.Debug("section markers incomplete, routing to model extractor",
		"strategy", chosen,
	)
	return chosen, nil
}

// deterministicApplicable reports whether every section marker appears in
// the lower-cased text.
func deterministicApplicable(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range sectionMarkers {
		if !strings.Contains(lowered, marker) {
			return false
		}
	}
	return true
}
