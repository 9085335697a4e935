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

package config

import (
	"strings"
	"testing"
)

// hostedOnly returns a valid configuration with only the hosted model
// backend set up.
func hostedOnly() *Config {
	return &Config{
		Mail: MailConfig{ClientID: "id", ClientSecret: "secret"},
		Model: ModelConfig{
			Backend:      "hosted",
			HostedAPIKey: "key",
		},
		Sink: SinkConfig{
			RealmHostname: "example.quickbase.com",
			UserToken:     "token",
			TableID:       "tbl",
		},
		DatabaseURL: "postgres://localhost/intake",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "hosted backend complete",
			mutate: func(*Config) {},
		},
		{
			name: "selfhosted backend complete",
			mutate: func(c *Config) {
				c.Model = ModelConfig{Backend: "selfhosted", LocalEndpoint: "http://localhost:8000/v1/chat/completions"}
			},
		},
		{
			name:    "missing mail credentials",
			mutate:  func(c *Config) { c.Mail.ClientSecret = "" },
			wantErr: "mail client credentials",
		},
		{
			name:    "hosted backend without key",
			mutate:  func(c *Config) { c.Model.HostedAPIKey = "" },
			wantErr: "hosted_api_key is empty",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Model.Backend = "oracle" },
			wantErr: "unknown model backend",
		},
		{
			name: "preference names unconfigured local backend",
			mutate: func(c *Config) {
				c.Preference = "local-model"
			},
			wantErr: "no self-hosted backend",
		},
		{
			name: "preference names unconfigured remote backend",
			mutate: func(c *Config) {
				c.Model = ModelConfig{Backend: "selfhosted", LocalEndpoint: "http://localhost:8000/v1/chat/completions"}
				c.Preference = "remote-model"
			},
			wantErr: "no hosted backend",
		},
		{
			name: "preference matches configured backend",
			mutate: func(c *Config) {
				c.Preference = "remote-model"
			},
		},
		{
			name:    "missing sink settings",
			mutate:  func(c *Config) { c.Sink.TableID = "" },
			wantErr: "sink not configured",
		},
		{
			name:    "missing database URL",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "database URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := hostedOnly()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
