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

// Package llm provides text-completion clients for chat-completion style
// model backends. The hosted and self-hosted variants share one codec and
// differ only in endpoint and authentication.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// BackendError is a failed call to a model backend. StatusCode is zero for
// transport-level failures that never produced an HTTP response.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("model backend request failed: %s", e.Message)
	}
	return fmt.Sprintf("model backend returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the failure class is worth retrying:
// transport errors, rate limits, and server errors.
func (e *BackendError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// chatRequest is an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is an OpenAI-compatible chat completion response.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client calls one chat-completion endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

// NewHosted creates a client for a hosted, key-authenticated API.
// baseURL is the API root (e.g. "https://api.openai.com/v1").
func NewHosted(httpClient *http.Client, baseURL, apiKey, model string) *Client {
	return &Client{
		httpClient: httpClient,
		url:        strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		apiKey:     apiKey,
		model:      model,
	}
}

// NewSelfHosted creates a client for a self-hosted endpoint. endpoint is the
// full completions URL (e.g. "http://localhost:8000/v1/chat/completions").
func NewSelfHosted(httpClient *http.Client, endpoint, model string) *Client {
	return &Client{
		httpClient: httpClient,
		url:        endpoint,
		model:      model,
	}
}

// Complete sends one chat completion request and returns the raw text of
// the first choice.
func (c *Client) Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context errors (timeout, cancellation) propagate as-is so the
		// caller's retry policy can classify them.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &BackendError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &BackendError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &BackendError{StatusCode: resp.StatusCode, Message: "no choices in response"}
	}

	return parsed.Choices[0].Message.Content, nil
}
