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

import "errors"

var (
	// ErrMalformedInput means the message text cannot be processed at all.
	// Fatal for the message, never retried.
	ErrMalformedInput = errors.New("malformed input text")

	// ErrBackendUnavailable means the model backend kept failing after the
	// retry budget was spent. The message stays unacknowledged so a later
	// run can retry it.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrResponseParse means the model returned text with no parseable
	// brace-delimited payload. Same retry-later disposition as
	// ErrBackendUnavailable.
	ErrResponseParse = errors.New("model response not parseable")
)
