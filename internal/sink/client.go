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

// Package sink writes accepted assignment records to the Quickbase claims
// table. Field IDs follow the table schema in the account realm; every leaf
// of the record maps to exactly one field ID.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/forensiq/intake/internal/models"
	"github.com/forensiq/intake/internal/retry"
)

// DefaultAPIURL is the Quickbase records endpoint.
const DefaultAPIURL = "https://api.quickbase.com/v1/records"

// Config carries the Quickbase connection settings.
type Config struct {
	APIURL        string
	RealmHostname string
	UserToken     string
	TableID       string
	MaxAttempts   int
	BackoffBase   time.Duration
}

// Client inserts assignment records into Quickbase.
type Client struct {
	httpClient *http.Client
	cfg        Config
	backoff    retry.BackoffFunc
}

// NewClient creates a Quickbase sink client.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		backoff:    retry.Exponential(cfg.BackoffBase),
	}
}

// fieldValue is the {"value": ...} wrapper Quickbase expects per field.
type fieldValue struct {
	Value any `json:"value"`
}

// insertRequest is the records insert payload.
type insertRequest struct {
	To   string                  `json:"to"`
	Data []map[string]fieldValue `json:"data"`
}

// insertResponse is the subset of the insert reply we read back.
type insertResponse struct {
	Metadata struct {
		CreatedRecordIDs []int64 `json:"createdRecordIds"`
	} `json:"metadata"`
}

// mapRecord flattens an AssignmentRecord into the table's field IDs.
func mapRecord(rec *models.AssignmentRecord) map[string]fieldValue {
	return map[string]fieldValue{
		"6":  {rec.RequestingParty.InsuranceCompany},
		"7":  {rec.RequestingParty.Handler},
		"8":  {rec.RequestingParty.CarrierClaimNumber},
		"9":  {rec.InsuredInformation.Name},
		"10": {rec.InsuredInformation.ContactNumber},
		"11": {rec.InsuredInformation.LossAddress},
		"12": {rec.InsuredInformation.PublicAdjuster},
		"13": {rec.InsuredInformation.OwnershipStatus},
		"14": {rec.AdjusterInformation.AdjusterName},
		"15": {rec.AdjusterInformation.AdjusterPhoneNumber},
		"16": {rec.AdjusterInformation.AdjusterEmail},
		"17": {rec.AdjusterInformation.JobTitle},
		"18": {rec.AdjusterInformation.Address},
		"19": {rec.AdjusterInformation.PolicyNumber},
		"20": {rec.AssignmentInformation.DateOfLoss},
		"21": {rec.AssignmentInformation.CauseOfLoss},
		"22": {rec.AssignmentInformation.FactsOfLoss},
		"23": {rec.AssignmentInformation.LossDescription},
		"24": {rec.AssignmentInformation.ResidenceOccupiedDuringLoss},
		"25": {rec.AssignmentInformation.SomeoneHomeAtTimeOfDamage},
		"26": {rec.AssignmentInformation.RepairProgress},
		"27": {rec.AssignmentInformation.Type},
		"28": {rec.AssignmentInformation.InspectionType},
		"29": {strings.Join(rec.AssignmentDetails.AssignmentTypes, ", ")},
		"30": {rec.AssignmentDetails.OtherDetails},
		"31": {rec.AssignmentDetails.AdditionalInstructions},
		"32": {strings.Join(rec.AssignmentDetails.AttachmentRefs, ", ")},
		"33": {rec.MessageID},
	}
}

// Insert writes one assignment record and returns the created record ID.
// Transient failures (429, 5xx, transport errors) are retried with the
// shared backoff policy.
func (c *Client) Insert(ctx context.Context, rec *models.AssignmentRecord) (string, error) {
	payload := insertRequest{
		To:   c.cfg.TableID,
		Data: []map[string]fieldValue{mapRecord(rec)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal insert payload: %w", err)
	}

	var result insertResponse
	err = retry.Do(ctx, c.cfg.MaxAttempts, c.backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("QB-Realm-Hostname", c.cfg.RealmHostname)
		req.Header.Set("Authorization", "QB-USER-TOKEN "+c.cfg.UserToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("quickbase request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read quickbase response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("quickbase status %d: %s", resp.StatusCode, respBody)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return retry.Permanent(fmt.Errorf("quickbase status %d: %s", resp.StatusCode, respBody))
		}

		if err := json.Unmarshal(respBody, &result); err != nil {
			return retry.Permanent(fmt.Errorf("decode quickbase response: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	recordID := ""
	if ids := result.Metadata.CreatedRecordIDs; len(ids) > 0 {
		recordID = fmt.Sprintf("%d", ids[0])
	}

	slog.Info("inserted assignment record",
		"message_id", rec.MessageID,
		"record_id", recordID,
		"table", c.cfg.TableID,
	)
	return recordID, nil
}
