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

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/forensiq/intake/internal/models"
)

// --- Mock mail source ---

type mockMail struct {
	mu       sync.Mutex
	messages map[string]*models.RawMessage
	marked   []string
	markErr  map[string]error
}

func newMockMail(bodies map[string]string) *mockMail {
	m := &mockMail{
		messages: make(map[string]*models.RawMessage),
		markErr:  make(map[string]error),
	}
	for id, body := range bodies {
		m.messages[id] = &models.RawMessage{ID: id, Subject: "Assignment " + id, Body: body}
	}
	return m
}

func (m *mockMail) ListUnread(_ context.Context, maxResults int) ([]models.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []models.MessageRef
	for id := range m.messages {
		if len(refs) >= maxResults {
			break
		}
		refs = append(refs, models.MessageRef{ID: id})
	}
	return refs, nil
}

func (m *mockMail) FetchFull(_ context.Context, id string) (*models.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id], nil // nil means gone from the mailbox
}

func (m *mockMail) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[id]; err != nil {
		return err
	}
	m.marked = append(m.marked, id)
	return nil
}

func (m *mockMail) markedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.marked))
	copy(out, m.marked)
	return out
}

// --- Mock processor ---

type mockProcessor struct {
	mu        sync.Mutex
	calls     int
	failIDs   map[string]error
	reviewIDs map[string]bool
}

func (m *mockProcessor) ProcessMessage(_ context.Context, msg models.RawMessage, _ string) (*models.AssignmentRecord, *models.ReviewVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.failIDs[msg.ID]; err != nil {
		return nil, nil, err
	}
	verdict := &models.ReviewVerdict{
		IsStructurallyValid: true,
		ConfidenceScore:     1.0,
	}
	if m.reviewIDs[msg.ID] {
		verdict.IsStructurallyValid = false
		verdict.NeedsHumanReview = true
		verdict.Reasons = []string{"missing required field: Handler"}
	}
	return &models.AssignmentRecord{MessageID: msg.ID, Strategy: models.StrategyDeterministic}, verdict, nil
}

// --- Mock dedup ---

type mockDedup struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked []string
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: make(map[string]bool)}
}

func (m *mockDedup) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[id], nil
}

func (m *mockDedup) Mark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[id] = true
	m.marked = append(m.marked, id)
	return nil
}

// --- Mock sink ---

type mockSink struct {
	mu       sync.Mutex
	inserted []string
	failIDs  map[string]error
}

func (m *mockSink) Insert(_ context.Context, rec *models.AssignmentRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs != nil {
		if err := m.failIDs[rec.MessageID]; err != nil {
			return "", err
		}
	}
	m.inserted = append(m.inserted, rec.MessageID)
	return fmt.Sprintf("qb-%d", len(m.inserted)), nil
}

func (m *mockSink) insertedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inserted))
	copy(out, m.inserted)
	return out
}

// --- Mock review queue ---

type mockQueue struct {
	mu        sync.Mutex
	published []string
}

func (m *mockQueue) PublishForReview(_ context.Context, rec *models.AssignmentRecord, _ *models.ReviewVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rec.MessageID)
	return nil
}

// --- Mock journal ---

type mockJournal struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func newMockJournal() *mockJournal {
	return &mockJournal{outcomes: make(map[string]string)}
}

func (m *mockJournal) MarkProcessed(_ context.Context, id, _, _ string, _ float64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[id] = "processed"
	return nil
}

func (m *mockJournal) MarkFlagged(_ context.Context, id, _, _ string, _ float64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[id] = "flagged"
	return nil
}

func (m *mockJournal) MarkFailed(_ context.Context, id, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[id] = "failed"
	return nil
}

func (m *mockJournal) outcome(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[id]
}

// --- Tests ---

func newTestRunner(mail *mockMail, proc *mockProcessor, filter *mockDedup, s *mockSink, q *mockQueue, j *mockJournal) *Runner {
	return NewRunner(RunnerConfig{
		Mail:        mail,
		Processor:   proc,
		Dedup:       filter,
		Sink:        s,
		Reviews:     q,
		Journal:     j,
		Concurrency: 2,
	})
}

// TestProcessUnread_AcceptedGoesToSink verifies the happy path: processed,
// inserted, marked read, deduped, journalled.
func TestProcessUnread_AcceptedGoesToSink(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	filter := newMockDedup()
	s := &mockSink{}
	q := &mockQueue{}
	j := newMockJournal()

	runner := newTestRunner(mail, &mockProcessor{}, filter, s, q, j)
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Processed != 1 || result.Failed != 0 || result.Flagged != 0 {
		t.Errorf("result = %+v, want 1 processed", result)
	}
	if got := s.insertedIDs(); len(got) != 1 || got[0] != "msg-1" {
		t.Errorf("inserted = %v, want [msg-1]", got)
	}
	if got := mail.markedIDs(); len(got) != 1 || got[0] != "msg-1" {
		t.Errorf("marked read = %v, want [msg-1]", got)
	}
	if !filter.seen["msg-1"] {
		t.Error("message should be marked in dedup after acknowledgement")
	}
	if j.outcome("msg-1") != "processed" {
		t.Errorf("journal outcome = %q, want processed", j.outcome("msg-1"))
	}
	if len(q.published) != 0 {
		t.Errorf("published = %v, want none", q.published)
	}
}

// TestProcessUnread_FlaggedGoesToReviewQueue verifies flagged records are
// published for review instead of inserted, and still acknowledged.
func TestProcessUnread_FlaggedGoesToReviewQueue(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	proc := &mockProcessor{reviewIDs: map[string]bool{"msg-1": true}}
	filter := newMockDedup()
	s := &mockSink{}
	q := &mockQueue{}
	j := newMockJournal()

	runner := newTestRunner(mail, proc, filter, s, q, j)
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Flagged != 1 {
		t.Errorf("result = %+v, want 1 flagged", result)
	}
	if len(s.insertedIDs()) != 0 {
		t.Error("flagged record must not reach the sink")
	}
	if len(q.published) != 1 || q.published[0] != "msg-1" {
		t.Errorf("published = %v, want [msg-1]", q.published)
	}
	if got := mail.markedIDs(); len(got) != 1 {
		t.Errorf("marked read = %v, want the flagged message acknowledged", got)
	}
	if j.outcome("msg-1") != "flagged" {
		t.Errorf("journal outcome = %q, want flagged", j.outcome("msg-1"))
	}
}

// TestProcessUnread_FailureLeavesUnread verifies a pipeline failure leaves
// the message unacknowledged and out of dedup, so the next run retries it.
func TestProcessUnread_FailureLeavesUnread(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	proc := &mockProcessor{failIDs: map[string]error{"msg-1": errors.New("backend down")}}
	filter := newMockDedup()
	j := newMockJournal()

	runner := newTestRunner(mail, proc, filter, &mockSink{}, &mockQueue{}, j)
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
	if len(mail.markedIDs()) != 0 {
		t.Error("failed message must stay unread")
	}
	if filter.seen["msg-1"] {
		t.Error("failed message must not enter dedup")
	}
	if j.outcome("msg-1") != "failed" {
		t.Errorf("journal outcome = %q, want failed", j.outcome("msg-1"))
	}
}

// TestProcessUnread_MarkReadFailureCountsAsFailed verifies the ack step is
// part of the success path: if it fails, the run reports a failure and the
// message is not deduped.
func TestProcessUnread_MarkReadFailureCountsAsFailed(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	mail.markErr["msg-1"] = errors.New("label modify failed")
	filter := newMockDedup()
	s := &mockSink{}

	runner := newTestRunner(mail, &mockProcessor{}, filter, s, &mockQueue{}, newMockJournal())
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
	// The sink insert happened before the failed ack; the message will be
	// redelivered, which is the at-least-once contract.
	if len(s.insertedIDs()) != 1 {
		t.Errorf("inserted = %v, want the record written before the ack", s.insertedIDs())
	}
	if filter.seen["msg-1"] {
		t.Error("message must not enter dedup when the ack fails")
	}
}

// TestProcessUnread_SeenMessagesSkipped verifies dedup prevents repeat
// processing.
func TestProcessUnread_SeenMessagesSkipped(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body", "msg-2": "body"})
	proc := &mockProcessor{}
	filter := newMockDedup()
	filter.seen["msg-1"] = true

	runner := newTestRunner(mail, proc, filter, &mockSink{}, &mockQueue{}, newMockJournal())
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Skipped != 1 || result.Processed != 1 {
		t.Errorf("result = %+v, want 1 skipped and 1 processed", result)
	}
	if proc.calls != 1 {
		t.Errorf("processor calls = %d, want 1", proc.calls)
	}
}

// TestProcessUnread_GoneMessageSkipped verifies a message deleted between
// listing and fetch is skipped, not failed.
func TestProcessUnread_GoneMessageSkipped(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	mail.messages["msg-2"] = nil // listed but gone

	runner := newTestRunner(mail, &mockProcessor{}, newMockDedup(), &mockSink{}, &mockQueue{}, newMockJournal())
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Skipped != 1 || result.Processed != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want 1 skipped and 1 processed", result)
	}
}

// TestProcessUnread_SinkFailureLeavesUnread verifies a sink outage keeps
// the message unread for redelivery.
func TestProcessUnread_SinkFailureLeavesUnread(t *testing.T) {
	mail := newMockMail(map[string]string{"msg-1": "body"})
	s := &mockSink{failIDs: map[string]error{"msg-1": errors.New("quickbase 503")}}
	filter := newMockDedup()
	j := newMockJournal()

	runner := newTestRunner(mail, &mockProcessor{}, filter, s, &mockQueue{}, j)
	result, err := runner.ProcessUnread(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessUnread returned error: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
	if len(mail.markedIDs()) != 0 {
		t.Error("message must stay unread when the sink insert fails")
	}
	if j.outcome("msg-1") != "failed" {
		t.Errorf("journal outcome = %q, want failed", j.outcome("msg-1"))
	}
}
