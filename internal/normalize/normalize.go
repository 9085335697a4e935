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

// Package normalize strips signature and footer boilerplate from raw email
// bodies before extraction.
package normalize

import "strings"

// signatureMarkers are line prefixes that start a signature or footer line.
var signatureMarkers = []string{"--", "Regards,", "Best,"}

// Body removes signature and footer lines from an email body. Lines whose
// trimmed text starts with a signature marker are dropped; everything else
// is preserved in its original order. Body is pure and never fails — input
// with no boilerplate comes back unchanged.
func Body(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		if isSignatureLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func isSignatureLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range signatureMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}
