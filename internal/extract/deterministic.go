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

// Package extract turns normalized email text into a flat field map, either
// through a fixed pattern table or through a model-backed completion call.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/forensiq/intake/internal/models"
)

// Extractor is the single contract all extraction strategies share.
type Extractor interface {
	Extract(ctx context.Context, text string) (*models.ExtractionResult, error)
}

// patternKind selects how a pattern's capture is interpreted.
type patternKind int

const (
	kindLine     patternKind = iota // "Label: value" line, capture trimmed
	kindCheckbox                    // "Name [x]" token, capture presence as bool
	kindList                        // "Label: a, b, c" line, capture split on commas
)

// fieldPattern associates one canonical field with its extraction pattern.
type fieldPattern struct {
	field string
	re    *regexp.Regexp
	kind  patternKind
}

// linePattern builds the anchored "Label: value" pattern for a field label.
func linePattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^\s*` + regexp.QuoteMeta(label) + `:[ \t]*(.*)`)
}

// checkboxPattern builds the "Name [x]" / "Name [ ]" pattern for an
// assignment-type checkbox.
func checkboxPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `\s*\[\s*(x)?\s*\]`)
}

// ownershipPattern matches the owner-or-tenant question line and captures
// the answer. Ownership is the one field with no "Label: value" shape.
var ownershipPattern = regexp.MustCompile(`(?i)Is the insured an Owner or a Tenant of the loss location\?[ \t]*(.*)`)

// patternTable is the fixed, ordered field table applied to well-formatted
// assignment emails. New fields are additions to this table, not code
// changes elsewhere.
var patternTable = []fieldPattern{
	{models.FieldInsuranceCompany, linePattern("Requesting Party Insurance Company"), kindLine},
	{models.FieldHandler, linePattern("Handler"), kindLine},
	{models.FieldCarrierClaimNumber, linePattern("Carrier Claim Number"), kindLine},
	{models.FieldInsuredName, linePattern("Name"), kindLine},
	{models.FieldInsuredContact, linePattern("Contact #"), kindLine},
	{models.FieldLossAddress, linePattern("Loss Address"), kindLine},
	{models.FieldPublicAdjuster, linePattern("Public Adjuster"), kindLine},
	{models.FieldLandlordContact, linePattern("Landlord Contact"), kindLine},
	{models.FieldAdjusterName, linePattern("Adjuster Name"), kindLine},
	{models.FieldAdjusterPhone, linePattern("Adjuster Phone Number"), kindLine},
	{models.FieldAdjusterEmail, linePattern("Adjuster Email"), kindLine},
	{models.FieldJobTitle, linePattern("Job Title"), kindLine},
	{models.FieldAdjusterAddress, linePattern("Address"), kindLine},
	{models.FieldPolicyNumber, linePattern("Policy #"), kindLine},
	{models.FieldDateOfLoss, linePattern("Date of Loss/Occurrence"), kindLine},
	{models.FieldCauseOfLoss, linePattern("Cause of loss"), kindLine},
	{models.FieldFactsOfLoss, linePattern("Facts of Loss"), kindLine},
	{models.FieldLossDescription, linePattern("Loss Description"), kindLine},
	{models.FieldResidenceOccupied, linePattern("Residence Occupied During Loss"), kindLine},
	{models.FieldSomeoneHome, linePattern("Was Someone home at time of damage"), kindLine},
	{models.FieldRepairProgress, linePattern("Repair or Mitigation Progress"), kindLine},
	{models.FieldType, linePattern("Type"), kindLine},
	{models.FieldInspectionType, linePattern("Inspection type"), kindLine},
	{models.FieldTypeWind, checkboxPattern("Wind"), kindCheckbox},
	{models.FieldTypeStructural, checkboxPattern("Structural"), kindCheckbox},
	{models.FieldTypeHail, checkboxPattern("Hail"), kindCheckbox},
	{models.FieldTypeFoundation, checkboxPattern("Foundation"), kindCheckbox},
	{models.FieldTypeOther, checkboxPattern("Other"), kindCheckbox},
	{models.FieldOtherDetails, linePattern("Other - provide details"), kindLine},
	{models.FieldAdditionalInstructions, linePattern("Additional details/Special Instructions"), kindLine},
	{models.FieldAttachments, linePattern("Attachment(s)"), kindList},
}

// Deterministic extracts fields from well-formatted emails through the
// fixed pattern table.
type Deterministic struct{}

// NewDeterministic creates the pattern-based extractor.
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// Extract applies the pattern table to the normalized text. Fields whose
// pattern does not match are recorded as nil — present in the map, with no
// value — so the validator can tell "never extracted" from "extracted but
// empty". It fails only when the text is not valid UTF-8.
func (d *Deterministic) Extract(_ context.Context, text string) (*models.ExtractionResult, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedInput)
	}

	fields := make(map[string]any, len(patternTable)+1)

	for _, fp := range patternTable {
		m := fp.re.FindStringSubmatch(text)
		if m == nil {
			slog.Debug("pattern not matched", "field", fp.field)
			fields[fp.field] = nil
			continue
		}

		switch fp.kind {
		case kindCheckbox:
			fields[fp.field] = m[1] != ""
		case kindList:
			fields[fp.field] = splitList(m[1])
		default:
			fields[fp.field] = strings.TrimSpace(m[1])
		}
	}

	// Ownership answers a question line rather than a labelled field. An
	// unmatched question records the "Unknown" sentinel instead of nil; the
	// sentinel still fails the Owner/Tenant rule during validation.
	if m := ownershipPattern.FindStringSubmatch(text); m != nil {
		fields[models.FieldOwnership] = strings.TrimSpace(m[1])
	} else {
		fields[models.FieldOwnership] = models.OwnershipUnknown
	}

	return &models.ExtractionResult{
		Fields:   fields,
		Strategy: models.StrategyDeterministic,
	}, nil
}

// splitList turns a comma-separated capture into a trimmed string slice.
func splitList(capture string) []string {
	var out []string
	for _, part := range strings.Split(capture, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
