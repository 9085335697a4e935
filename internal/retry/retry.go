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

// Package retry implements the shared retry policy for fallible remote
// calls: the model backends, the mail source, and mark-read
// acknowledgements all retry transient failures through Do.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// BackoffFunc returns how long to wait before the given retry attempt.
// Attempt numbering starts at 0 for the wait after the first failure.
type BackoffFunc func(attempt int) time.Duration

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Exponential returns a backoff of base*2^attempt plus up to one second of
// random jitter, so concurrent pipeline runs don't retry in lockstep.
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		jitter := time.Duration(rand.Int63n(int64(time.Second)))
		return base*(1<<attempt) + jitter
	}
}

// Do runs op up to maxAttempts times, sleeping backoff(attempt) between
// attempts. It returns nil on the first success, the wrapped error as soon
// as op reports a Permanent failure, and the last error once attempts are
// exhausted. Context cancellation stops the loop immediately.
func Do(ctx context.Context, maxAttempts int, backoff BackoffFunc, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}

		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
