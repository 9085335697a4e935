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

package strategy

import (
	"errors"
	"strings"
	"testing"

	"github.com/forensiq/intake/internal/models"
)

// structuredBody contains every section marker.
const structuredBody = `Requesting Party Insurance Company: ABC Insurance
Carrier Claim Number: 12345
Insured Information
Adjuster Information
Assignment Information
Additional details/Special Instructions: none`

func TestSelectDeterministicWhenAllMarkersPresent(t *testing.T) {
	s := NewSelector(false)
	got, err := s.Select(structuredBody, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.StrategyDeterministic {
		t.Errorf("strategy = %q, want %q", got, models.StrategyDeterministic)
	}
}

// TestSelectModelWhenAnyMarkerMissing drops each marker in turn and verifies
// the choice is never deterministic — partial matches are all-or-nothing.
func TestSelectModelWhenAnyMarkerMissing(t *testing.T) {
	for _, marker := range sectionMarkers {
		t.Run(marker, func(t *testing.T) {
			body := strings.Replace(strings.ToLower(structuredBody), marker, "", 1)

			s := NewSelector(false)
			got, err := s.Select(body, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != models.StrategyRemoteModel {
				t.Errorf("strategy = %q, want %q", got, models.StrategyRemoteModel)
			}
		})
	}
}

func TestSelectLocalModelFlag(t *testing.T) {
	s := NewSelector(true)
	got, err := s.Select("unstructured text", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.StrategyLocalModel {
		t.Errorf("strategy = %q, want %q", got, models.StrategyLocalModel)
	}
}

func TestSelectCaseInsensitiveMarkers(t *testing.T) {
	s := NewSelector(false)
	got, err := s.Select(strings.ToUpper(structuredBody), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.StrategyDeterministic {
		t.Errorf("strategy = %q, want %q", got, models.StrategyDeterministic)
	}
}

func TestSelectExplicitPreference(t *testing.T) {
	tests := []struct {
		preference string
		want       models.Strategy
		wantErr    bool
	}{
		{preference: "deterministic", want: models.StrategyDeterministic},
		{preference: "remote-model", want: models.StrategyRemoteModel},
		{preference: "local-model", want: models.StrategyLocalModel},
		{preference: "magic", wantErr: true},
		{preference: "DETERMINISTIC", wantErr: true},
	}

	s := NewSelector(false)
	for _, tt := range tests {
		t.Run(tt.preference, func(t *testing.T) {
			// Preference wins even for text with every marker present.
			got, err := s.Select(structuredBody, tt.preference)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Fatalf("error = %v, want ErrUnknownStrategy", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("strategy = %q, want %q", got, tt.want)
			}
		})
	}
}
