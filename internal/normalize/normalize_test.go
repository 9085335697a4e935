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

package normalize

import "testing"

func TestBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no boilerplate unchanged",
			in:   "Handler: John Doe\nCarrier Claim Number: 12345",
			want: "Handler: John Doe\nCarrier Claim Number: 12345",
		},
		{
			name: "drops signature separator",
			in:   "Loss Address: 123 Main St\n--\nJane Smith\nSenior Adjuster",
			want: "Loss Address: 123 Main St\nJane Smith\nSenior Adjuster",
		},
		{
			name: "drops regards line",
			in:   "Policy #: POL789\nRegards,\nMike",
			want: "Policy #: POL789\nMike",
		},
		{
			name: "drops best line with leading whitespace",
			in:   "Type: Residential\n  Best,\nMike",
			want: "Type: Residential\nMike",
		},
		{
			name: "preserves ordering of kept lines",
			in:   "a\n--\nb\nRegards,\nc",
			want: "a\nb\nc",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Body(tt.in); got != tt.want {
				t.Errorf("Body() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBodyIsPure verifies repeated normalization is stable.
func TestBodyIsPure(t *testing.T) {
	in := "Handler: Jo\n--\nsig"
	once := Body(in)
	twice := Body(once)
	if once != twice {
		t.Errorf("Body not idempotent: %q vs %q", once, twice)
	}
}
