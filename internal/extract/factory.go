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
	"fmt"

	"github.com/forensiq/intake/internal/models"
)

// Factory maps a strategy tag to its concrete extractor instance. The
// instances are built once at startup and shared across messages.
type Factory struct {
	deterministic *Deterministic
	remote        *ModelExtractor
	local         *ModelExtractor
}

// NewFactory creates the extractor factory. remote and local wrap the two
// model backend clients and may share options; either may be nil when that
// backend is not configured, in which case its strategy is unavailable.
func NewFactory(remote, local Completer, opts ModelOptions) *Factory {
	f := &Factory{deterministic: NewDeterministic()}
	if remote != nil {
		f.remote = NewModelExtractor(remote, models.StrategyRemoteModel, opts)
	}
	if local != nil {
		f.local = NewModelExtractor(local, models.StrategyLocalModel, opts)
	}
	return f
}

// ForStrategy returns the extractor for a strategy tag. Requesting a
// model-backed strategy whose backend was not configured is an error, not a
// fallback — a forced preference must never silently switch backends.
func (f *Factory) ForStrategy(s models.Strategy) (Extractor, error) {
	switch s {
	case models.StrategyDeterministic:
		return f.deterministic, nil
	case models.StrategyRemoteModel:
		if f.remote == nil {
			return nil, fmt.Errorf("strategy %q requested but no hosted model backend is configured", s)
		}
		return f.remote, nil
	case models.StrategyLocalModel:
		if f.local == nil {
			return nil, fmt.Errorf("strategy %q requested but no self-hosted model backend is configured", s)
		}
		return f.local, nil
	default:
		return nil, fmt.Errorf("no extractor for strategy %q", s)
	}
}
