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

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"
)

// gmailScope allows reading messages and modifying labels (mark-read).
const gmailScope = "https://www.googleapis.com/auth/gmail.modify"

// googleEndpoint is Google's OAuth2 endpoint pair.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// lockTimeout bounds how long a refresh waits for the token file lock.
const lockTimeout = 10 * time.Second

// TokenStore manages the persisted OAuth2 token for the mailbox. Refreshed
// tokens are written back to the token file under a file lock, so multiple
// concurrent pipeline runs (in this process or another) never race a
// refresh-and-persist cycle against each other.
type TokenStore struct {
	conf *oauth2.Config
	path string
	lock *flock.Flock
}

// NewTokenStore creates a token store for the given client credentials and
// token file path. The token file must already exist — the interactive
// authorization flow that seeds it is run out of band.
func NewTokenStore(clientID, clientSecret, tokenPath string) *TokenStore {
	return &TokenStore{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleEndpoint,
			Scopes:       []string{gmailScope},
		},
		path: tokenPath,
		lock: flock.New(tokenPath + ".lock"),
	}
}

// HTTPClient returns an authenticated HTTP client whose token source
// persists refreshed tokens back to the token file.
func (s *TokenStore) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	src := oauth2.ReuseTokenSource(tok, &persistingSource{
		store: s,
		src:   s.conf.TokenSource(ctx, tok),
		last:  tok.AccessToken,
	})
	return oauth2.NewClient(ctx, src), nil
}

// load reads the persisted token under a shared lock.
func (s *TokenStore) load(ctx context.Context) (*oauth2.Token, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	ok, err := s.lock.TryRLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire token file lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("token file lock not acquired within %s", lockTimeout)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read token file %s (run the authorization flow first): %w", s.path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	return &tok, nil
}

// save writes a refreshed token under an exclusive lock. The write goes to
// a temp file first so a crash mid-write never corrupts the token store.
func (s *TokenStore) save(ctx context.Context, tok *oauth2.Token) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	ok, err := s.lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire token file lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("token file lock not acquired within %s", lockTimeout)
	}
	defer s.lock.Unlock()

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}

	slog.Info("persisted refreshed OAuth token", "path", s.path)
	return nil
}

// persistingSource wraps the refreshing token source and writes every new
// token back to disk. oauth2.ReuseTokenSource serializes calls, so Token
// never runs concurrently within one process; the file lock covers other
// processes.
type persistingSource struct {
	store *TokenStore
	src   oauth2.TokenSource
	last  string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	if tok.AccessToken != p.last {
		if err := p.store.save(context.Background(), tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		p.last = tok.AccessToken
	}

	return tok, nil
}
