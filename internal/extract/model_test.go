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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forensiq/intake/internal/llm"
	"github.com/forensiq/intake/internal/models"
)

// --- Mock completer ---

type mockCompleter struct {
	mu      sync.Mutex
	calls   int
	replies []string // replies returned in order
	errs    []error  // errors returned in order; nil entry means success
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string, _ float64, _ int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	if len(m.replies) > 0 {
		return m.replies[len(m.replies)-1], nil
	}
	return "", nil
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// modelReply is a typical completion: prose around a JSON payload.
const modelReply = `Here is the extracted data:
{
	"Requesting Party Insurance Company": "ABC Insurance",
	"Handler": "John Doe",
	"Carrier Claim Number": "12345",
	"Insured Information": {
		"Name": "Jane Smith",
		"Contact #": "+12345678901",
		"Ownership": "Owner"
	},
	"Adjuster Information": {
		"Adjuster Email": "mike.johnson@example.com"
	},
	"Assignment Type": {
		"Wind": true,
		"Hail": false
	},
	"Attachments": ["photo1.jpg", "report.pdf"]
}
Let me know if you need anything else.`

func testOpts() ModelOptions {
	return ModelOptions{
		Temperature: 0.2,
		MaxTokens:   500,
		MaxAttempts: 5,
		BackoffBase: time.Millisecond,
	}
}

// TestModelExtractor_FlattensNestedReply verifies the nested reply groups
// are flattened onto the canonical field set.
func TestModelExtractor_FlattensNestedReply(t *testing.T) {
	completer := &mockCompleter{replies: []string{modelReply}}
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, testOpts())

	result, err := ex.Extract(context.Background(), "some email text")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if result.Strategy != models.StrategyRemoteModel {
		t.Errorf("Strategy = %q, want %q", result.Strategy, models.StrategyRemoteModel)
	}

	want := map[string]any{
		models.FieldInsuranceCompany:   "ABC Insurance",
		models.FieldHandler:            "John Doe",
		models.FieldCarrierClaimNumber: "12345",
		models.FieldInsuredName:        "Jane Smith",
		models.FieldInsuredContact:     "+12345678901",
		models.FieldOwnership:          "Owner",
		models.FieldAdjusterEmail:      "mike.johnson@example.com",
		models.FieldTypeWind:           true,
		models.FieldTypeHail:           false,
	}
	for field, wantVal := range want {
		if got := result.Fields[field]; got != wantVal {
			t.Errorf("field %q = %v, want %v", field, got, wantVal)
		}
	}

	// Keys the model omitted must stay absent, not become nil.
	if _, ok := result.Fields[models.FieldLossAddress]; ok {
		t.Error("omitted field should be absent from the result map")
	}
}

// TestModelExtractor_NoJSONInReply verifies that a reply with no
// brace-delimited payload fails with the parse error.
func TestModelExtractor_NoJSONInReply(t *testing.T) {
	completer := &mockCompleter{replies: []string{"I could not process this email."}}
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, testOpts())

	_, err := ex.Extract(context.Background(), "some email text")
	if !errors.Is(err, ErrResponseParse) {
		t.Errorf("err = %v, want ErrResponseParse", err)
	}
}

// TestModelExtractor_InvalidJSONInReply verifies that a brace span that is
// not valid JSON fails with the parse error.
func TestModelExtractor_InvalidJSONInReply(t *testing.T) {
	completer := &mockCompleter{replies: []string{"{not json}"}}
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, testOpts())

	_, err := ex.Extract(context.Background(), "some email text")
	if !errors.Is(err, ErrResponseParse) {
		t.Errorf("err = %v, want ErrResponseParse", err)
	}
}

// TestModelExtractor_RetriesTransientFailures verifies that three transient
// backend failures followed by a success yield a result on the fourth call.
func TestModelExtractor_RetriesTransientFailures(t *testing.T) {
	transient := &llm.BackendError{StatusCode: 503, Message: "overloaded"}
	completer := &mockCompleter{
		errs:    []error{transient, transient, transient, nil},
		replies: []string{"", "", "", modelReply},
	}
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, testOpts())

	result, err := ex.Extract(context.Background(), "some email text")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got := completer.callCount(); got != 4 {
		t.Errorf("call count = %d, want 4", got)
	}
	if result.Fields[models.FieldHandler] != "John Doe" {
		t.Errorf("handler = %v, want John Doe", result.Fields[models.FieldHandler])
	}
}

// TestModelExtractor_ExhaustedRetries verifies that persistent transient
// failures end in the backend-unavailable error after the retry budget.
func TestModelExtractor_ExhaustedRetries(t *testing.T) {
	transient := &llm.BackendError{StatusCode: 429, Message: "rate limited"}
	completer := &mockCompleter{
		errs: []error{transient, transient, transient, transient, transient},
	}
	opts := testOpts()
	opts.MaxAttempts = 5
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, opts)

	_, err := ex.Extract(context.Background(), "some email text")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
	if got := completer.callCount(); got != 5 {
		t.Errorf("call count = %d, want 5", got)
	}
}

// TestModelExtractor_PermanentFailureStopsEarly verifies that a
// non-transient backend response is not retried.
func TestModelExtractor_PermanentFailureStopsEarly(t *testing.T) {
	permanent := &llm.BackendError{StatusCode: 401, Message: "bad key"}
	completer := &mockCompleter{
		errs: []error{permanent, permanent, permanent, permanent, permanent},
	}
	ex := NewModelExtractor(completer, models.StrategyRemoteModel, testOpts())

	_, err := ex.Extract(context.Background(), "some email text")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
	if got := completer.callCount(); got != 1 {
		t.Errorf("call count = %d, want 1 (no retries on permanent failure)", got)
	}
}
