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

// Package validate enforces presence, format, and cross-field rules on an
// extraction field map. Validation never mutates its input, never coerces a
// wrong-shaped value, and reports violations as data — not as errors.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/forensiq/intake/internal/models"
)

// Result is the outcome of one validation run. An empty Violations list
// means the record is structurally valid.
type Result struct {
	Valid      bool
	Missing    []string // required fields absent, nil, or empty after trimming
	Violations []string // every violated rule, in rule-table order
}

// requiredFields is the presence rule table: every field here must be
// present and non-empty after trimming. Order determines violation order.
var requiredFields = []string{
	models.FieldInsuranceCompany,
	models.FieldHandler,
	models.FieldCarrierClaimNumber,
	models.FieldInsuredName,
	models.FieldInsuredContact,
	models.FieldLossAddress,
	models.FieldPublicAdjuster,
	models.FieldOwnership,
	models.FieldAdjusterName,
	models.FieldAdjusterPhone,
	models.FieldAdjusterEmail,
	models.FieldJobTitle,
	models.FieldAdjusterAddress,
	models.FieldPolicyNumber,
	models.FieldDateOfLoss,
	models.FieldCauseOfLoss,
	models.FieldFactsOfLoss,
	models.FieldLossDescription,
	models.FieldResidenceOccupied,
	models.FieldSomeoneHome,
	models.FieldRepairProgress,
	models.FieldType,
	models.FieldInspectionType,
}

// phonePattern is a simple international phone number shape.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// dateLayouts are the calendar date formats accepted for the date of loss.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
}

// semanticCheck is one format/range/cross-field rule. It returns a
// violation message, or "" when the rule holds.
type semanticCheck struct {
	name  string
	check func(fields map[string]any, today time.Time) string
}

// semanticChecks is the semantic rule table, applied in order after the
// presence pass succeeds. New rules are additions here, not code changes
// in Validate.
var semanticChecks = []semanticCheck{
	{
		name: "contact number format",
		check: func(fields map[string]any, _ time.Time) string {
			v := stringValue(fields, models.FieldInsuredContact)
			if !phonePattern.MatchString(v) {
				return fmt.Sprintf("%s: %q is not a valid phone number", models.FieldInsuredContact, v)
			}
			return ""
		},
	},
	{
		name: "adjuster email syntax",
		check: func(fields map[string]any, _ time.Time) string {
			v := stringValue(fields, models.FieldAdjusterEmail)
			if _, err := mail.ParseAddress(v); err != nil {
				return fmt.Sprintf("%s: %q is not a valid email address", models.FieldAdjusterEmail, v)
			}
			return ""
		},
	},
	{
		name: "date of loss range",
		check: func(fields map[string]any, today time.Time) string {
			v := stringValue(fields, models.FieldDateOfLoss)
			parsed, ok := parseDate(v)
			if !ok {
				return fmt.Sprintf("%s: %q is not a valid calendar date", models.FieldDateOfLoss, v)
			}
			if parsed.After(today) {
				return fmt.Sprintf("%s: %q is in the future", models.FieldDateOfLoss, v)
			}
			return ""
		},
	},
	{
		name: "ownership enum",
		check: func(fields map[string]any, _ time.Time) string {
			v := stringValue(fields, models.FieldOwnership)
			if !strings.EqualFold(v, "Owner") && !strings.EqualFold(v, "Tenant") {
				return fmt.Sprintf("%s: %q must be Owner or Tenant", models.FieldOwnership, v)
			}
			return ""
		},
	},
	{
		name: "tenant landlord contact",
		check: func(fields map[string]any, _ time.Time) string {
			if !strings.EqualFold(stringValue(fields, models.FieldOwnership), "Tenant") {
				return ""
			}
			if stringValue(fields, models.FieldLandlordContact) == "" {
				return fmt.Sprintf("%s: required when the insured is a Tenant", models.FieldLandlordContact)
			}
			return ""
		},
	},
	{
		name: "assignment types non-empty",
		check: func(fields map[string]any, _ time.Time) string {
			for _, at := range models.AssignmentTypeFields {
				if b, ok := fields[at.Field].(bool); ok && b {
					return ""
				}
			}
			return "Assignment Type: at least one type must be checked"
		},
	},
}

// Validator applies the presence and semantic rule tables.
type Validator struct {
	// Now supplies the reference time for the date-of-loss range check.
	// Injectable so validation is a pure function of its input in tests.
	Now func() time.Time
}

// NewValidator creates a validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

// Validate checks the extraction field map in two passes. The presence pass
// collects every missing required field and, if any are missing,
// short-circuits without running semantic checks. The semantic pass applies
// each rule-table entry in order.
func (v *Validator) Validate(fields map[string]any) Result {
	var res Result

	wrongShape := false
	for _, field := range requiredFields {
		val, ok := fields[field]
		if !ok || val == nil {
			res.Missing = append(res.Missing, field)
			continue
		}

		s, isString := val.(string)
		if !isString {
			// A wrong-shaped value is a violation, never an auto-fix.
			res.Violations = append(res.Violations, fmt.Sprintf("%s: value is not text", field))
			wrongShape = true
			continue
		}
		if strings.TrimSpace(s) == "" {
			res.Missing = append(res.Missing, field)
		}
	}

	if len(res.Missing) > 0 {
		for _, field := range res.Missing {
			res.Violations = append(res.Violations, fmt.Sprintf("missing required field: %s", field))
		}
		return res
	}
	if wrongShape {
		return res
	}

	today := dateOnly(v.Now())
	for _, rule := range semanticChecks {
		if msg := rule.check(fields, today); msg != "" {
			res.Violations = append(res.Violations, msg)
		}
	}

	res.Valid = len(res.Violations) == 0
	return res
}

// stringValue reads a trimmed string field; nil, absent, and non-string
// values come back as "".
func stringValue(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// parseDate tries each accepted layout in order.
func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateOnly truncates a time to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
