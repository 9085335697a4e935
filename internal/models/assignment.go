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

// Package models defines the data structures shared across the intake service.
package models

import "strings"

// MessageRef identifies an unread message in the mail source.
type MessageRef struct {
	ID string `json:"id"`
}

// RawMessage is an unread email as supplied by the mail source. It is never
// mutated by the pipeline.
type RawMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Strategy identifies which extractor produced a result.
type Strategy string

const (
	StrategyDeterministic Strategy = "deterministic"
	StrategyRemoteModel   Strategy = "remote-model"
	StrategyLocalModel    Strategy = "local-model"
)

// ExtractionResult is the output of a single extractor run. Fields is a flat
// mapping keyed by the canonical field names. A key mapped to nil means the
// extractor looked for the field and found nothing; a key that is absent
// means the extractor never produced it at all. Downstream validation relies
// on that distinction.
type ExtractionResult struct {
	Fields   map[string]any
	Strategy Strategy
}

// RequestingParty identifies the insurance company requesting the assignment.
type RequestingParty struct {
	InsuranceCompany   string `json:"insurance_company"`
	Handler            string `json:"handler"`
	CarrierClaimNumber string `json:"carrier_claim_number"`
}

// InsuredInformation describes the insured party and the loss location.
type InsuredInformation struct {
	Name            string `json:"name"`
	ContactNumber   string `json:"contact_number"`
	LossAddress     string `json:"loss_address"`
	PublicAdjuster  string `json:"public_adjuster"`
	OwnershipStatus string `json:"ownership_status"`
	LandlordContact string `json:"landlord_contact,omitempty"`
}

// AdjusterInformation describes the carrier's adjuster on the claim.
type AdjusterInformation struct {
	AdjusterName        string `json:"adjuster_name"`
	AdjusterPhoneNumber string `json:"adjuster_phone_number"`
	AdjusterEmail       string `json:"adjuster_email"`
	JobTitle            string `json:"job_title"`
	Address             string `json:"address"`
	PolicyNumber        string `json:"policy_number"`
}

// AssignmentInformation describes the loss event itself.
type AssignmentInformation struct {
	DateOfLoss                  string `json:"date_of_loss"`
	CauseOfLoss                 string `json:"cause_of_loss"`
	FactsOfLoss                 string `json:"facts_of_loss"`
	LossDescription             string `json:"loss_description"`
	ResidenceOccupiedDuringLoss string `json:"residence_occupied_during_loss"`
	SomeoneHomeAtTimeOfDamage   string `json:"someone_home_at_time_of_damage"`
	RepairProgress              string `json:"repair_or_mitigation_progress"`
	Type                        string `json:"type"`
	InspectionType              string `json:"inspection_type"`
}

// AssignmentDetails carries the assignment-type checkboxes and trailing notes.
type AssignmentDetails struct {
	AssignmentTypes        []string `json:"assignment_types"`
	OtherDetails           string   `json:"other_details,omitempty"`
	AdditionalInstructions string   `json:"additional_instructions,omitempty"`
	AttachmentRefs         []string `json:"attachment_refs,omitempty"`
}

// AssignmentRecord is the canonical structured output of the pipeline.
//
// A record is built from extracted fields regardless of validity — an
// invalid record is still returned to the caller, tagged by its
// ReviewVerdict, and must never reach the sink without that flag.
type AssignmentRecord struct {
	MessageID             string                `json:"message_id"`
	Strategy              Strategy              `json:"strategy,omitempty"`
	RequestingParty       RequestingParty       `json:"requesting_party"`
	InsuredInformation    InsuredInformation    `json:"insured_information"`
	AdjusterInformation   AdjusterInformation   `json:"adjuster_information"`
	AssignmentInformation AssignmentInformation `json:"assignment_information"`
	AssignmentDetails     AssignmentDetails     `json:"assignment_details"`
}

// ReviewVerdict is the pipeline's accept/escalate decision for one message.
// It is produced once and never mutated afterwards.
type ReviewVerdict struct {
	IsStructurallyValid bool     `json:"is_structurally_valid"`
	ConfidenceScore     float64  `json:"confidence_score"`
	NeedsHumanReview    bool     `json:"needs_human_review"`
	Reasons             []string `json:"reasons,omitempty"`
}

// FromFields builds an AssignmentRecord from a flat extraction field map.
// Missing and nil fields become empty strings; no validation happens here.
func FromFields(messageID string, fields map[string]any) *AssignmentRecord {
	rec := &AssignmentRecord{
		MessageID: messageID,
		RequestingParty: RequestingParty{
			InsuranceCompany:   stringField(fields, FieldInsuranceCompany),
			Handler:            stringField(fields, FieldHandler),
			CarrierClaimNumber: stringField(fields, FieldCarrierClaimNumber),
		},
		InsuredInformation: InsuredInformation{
			Name:            stringField(fields, FieldInsuredName),
			ContactNumber:   stringField(fields, FieldInsuredContact),
			LossAddress:     stringField(fields, FieldLossAddress),
			PublicAdjuster:  stringField(fields, FieldPublicAdjuster),
			OwnershipStatus: stringField(fields, FieldOwnership),
			LandlordContact: stringField(fields, FieldLandlordContact),
		},
		AdjusterInformation: AdjusterInformation{
			AdjusterName:        stringField(fields, FieldAdjusterName),
			AdjusterPhoneNumber: stringField(fields, FieldAdjusterPhone),
			AdjusterEmail:       stringField(fields, FieldAdjusterEmail),
			JobTitle:            stringField(fields, FieldJobTitle),
			Address:             stringField(fields, FieldAdjusterAddress),
			PolicyNumber:        stringField(fields, FieldPolicyNumber),
		},
		AssignmentInformation: AssignmentInformation{
			DateOfLoss:                  stringField(fields, FieldDateOfLoss),
			CauseOfLoss:                 stringField(fields, FieldCauseOfLoss),
			FactsOfLoss:                 stringField(fields, FieldFactsOfLoss),
			LossDescription:             stringField(fields, FieldLossDescription),
			ResidenceOccupiedDuringLoss: stringField(fields, FieldResidenceOccupied),
			SomeoneHomeAtTimeOfDamage:   stringField(fields, FieldSomeoneHome),
			RepairProgress:              stringField(fields, FieldRepairProgress),
			Type:                        stringField(fields, FieldType),
			InspectionType:              stringField(fields, FieldInspectionType),
		},
		AssignmentDetails: AssignmentDetails{
			OtherDetails:           stringField(fields, FieldOtherDetails),
			AdditionalInstructions: stringField(fields, FieldAdditionalInstructions),
			AttachmentRefs:         listField(fields, FieldAttachments),
		},
	}

	for _, at := range AssignmentTypeFields {
		if boolField(fields, at.Field) {
			rec.AssignmentDetails.AssignmentTypes = append(rec.AssignmentDetails.AssignmentTypes, at.Name)
		}
	}

	return rec
}

// stringField reads a trimmed string value from the field map. Nil and
// missing values both come back as "".
func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// boolField reads a boolean value from the field map.
func boolField(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// listField reads a list of strings from the field map. Model extractors
// may return attachments either as a JSON array or as a comma-separated
// string; both shapes are accepted.
func listField(fields map[string]any, key string) []string {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}

	var out []string
	switch val := v.(type) {
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, part := range strings.Split(val, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
