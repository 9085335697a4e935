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

// Package mail implements the mail-source collaborator against the Gmail
// REST API: list unread messages, fetch full content, and acknowledge
// processed messages by removing the UNREAD label. All three calls are
// fallible remote calls and go through the shared retry policy.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/forensiq/intake/internal/models"
	"github.com/forensiq/intake/internal/retry"
)

// DefaultBaseURL is the root of the Gmail REST API.
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// Client talks to the Gmail API for a single mailbox ("me").
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	backoff     retry.BackoffFunc
}

// NewClient creates a Gmail client. The httpClient must already handle
// authentication (see TokenStore).
func NewClient(httpClient *http.Client, baseURL string, maxAttempts int, backoffBase time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
		backoff:     retry.Exponential(backoffBase),
	}
}

// listResponse is a page of the messages.list endpoint.
type listResponse struct {
	Messages      []models.MessageRef `json:"messages"`
	NextPageToken string              `json:"nextPageToken"`
}

// gmailMessage is the relevant subset of a full message response.
type gmailMessage struct {
	ID      string       `json:"id"`
	Snippet string       `json:"snippet"`
	Payload gmailPayload `json:"payload"`
}

type gmailPayload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPayload `json:"parts"`
}

// ListUnread returns references to unread messages, up to maxResults,
// following pagination as needed.
func (c *Client) ListUnread(ctx context.Context, maxResults int) ([]models.MessageRef, error) {
	var refs []models.MessageRef
	pageToken := ""

	for {
		remaining := maxResults - len(refs)
		if remaining <= 0 {
			break
		}

		q := url.Values{}
		q.Set("labelIds", "UNREAD")
		q.Set("maxResults", strconv.Itoa(remaining))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page listResponse
		err := c.getJSON(ctx, fmt.Sprintf("%s/users/me/messages?%s", c.baseURL, q.Encode()), &page)
		if err != nil {
			return nil, fmt.Errorf("list unread messages: %w", err)
		}

		refs = append(refs, page.Messages...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	slog.Info("listed unread messages", "count", len(refs))
	return refs, nil
}

// FetchFull retrieves the full content of one message and extracts its
// plain-text body. Returns nil for a message that no longer exists.
func (c *Client) FetchFull(ctx context.Context, id string) (*models.RawMessage, error) {
	var msg gmailMessage
	err := c.getJSON(ctx, fmt.Sprintf("%s/users/me/messages/%s?format=full", c.baseURL, id), &msg)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("message not found (may have been deleted)", "message_id", id)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}

	body := plainTextBody(msg.Payload)
	if body == "" {
		body = msg.Snippet
	}

	return &models.RawMessage{
		ID:      msg.ID,
		Subject: headerValue(msg.Payload, "Subject"),
		Body:    body,
	}, nil
}

// MarkRead acknowledges a processed message by removing the UNREAD label.
// Call it only after the full pipeline has succeeded for the message.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	payload := map[string][]string{"removeLabelIds": {"UNREAD"}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal modify request: %w", err)
	}

	u := fmt.Sprintf("%s/users/me/messages/%s/modify", c.baseURL, id)
	err = retry.Do(ctx, c.maxAttempts, c.backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.checkedDo(req, nil)
	})
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", id, err)
	}

	slog.Info("marked message read", "message_id", id)
	return nil
}

// getJSON performs a retried GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	return retry.Do(ctx, c.maxAttempts, c.backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		return c.checkedDo(req, out)
	})
}

// apiError is a non-2xx Gmail API response.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gmail API returned HTTP %d: %s", e.status, e.body)
}

// checkedDo executes a request, classifies failures for the retry policy
// (429 and 5xx are transient, everything else permanent), and decodes a
// JSON body into out when given.
func (c *Client) checkedDo(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are transient.
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &apiError{status: resp.StatusCode, body: string(msg)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apiErr
		}
		return retry.Permanent(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// isNotFound reports whether err is a 404 API response.
func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.status == http.StatusNotFound
}

// headerValue returns the first header with the given name, if any.
func headerValue(p gmailPayload, name string) string {
	for _, h := range p.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// plainTextBody walks the MIME tree depth-first and returns the first
// decodable text/plain part.
func plainTextBody(p gmailPayload) string {
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		if decoded, err := base64.RawURLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(decoded)
		}
	}
	for _, part := range p.Parts {
		if body := plainTextBody(part); body != "" {
			return body
		}
	}
	return ""
}
