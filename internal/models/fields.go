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

package models

// Canonical field names shared by the extractors, the validator, and the
// record builder. These match the labels used in assignment emails; every
// extractor is responsible for mapping its own output onto this flat set.
const (
	FieldInsuranceCompany   = "Requesting Party Insurance Company"
	FieldHandler            = "Handler"
	FieldCarrierClaimNumber = "Carrier Claim Number"

	FieldInsuredName     = "Insured Name"
	FieldInsuredContact  = "Insured Contact #"
	FieldLossAddress     = "Loss Address"
	FieldPublicAdjuster  = "Public Adjuster"
	FieldOwnership       = "Ownership"
	FieldLandlordContact = "Landlord Contact"

	FieldAdjusterName    = "Adjuster Name"
	FieldAdjusterPhone   = "Adjuster Phone Number"
	FieldAdjusterEmail   = "Adjuster Email"
	FieldJobTitle        = "Job Title"
	FieldAdjusterAddress = "Adjuster Address"
	FieldPolicyNumber    = "Policy Number"

	FieldDateOfLoss        = "Date of Loss/Occurrence"
	FieldCauseOfLoss       = "Cause of loss"
	FieldFactsOfLoss       = "Facts of Loss"
	FieldLossDescription   = "Loss Description"
	FieldResidenceOccupied = "Residence Occupied During Loss"
	FieldSomeoneHome       = "Someone home at time of damage"
	FieldRepairProgress    = "Repair or Mitigation Progress"
	FieldType              = "Type"
	FieldInspectionType    = "Inspection type"

	FieldTypeWind       = "Assignment Type - Wind"
	FieldTypeStructural = "Assignment Type - Structural"
	FieldTypeHail       = "Assignment Type - Hail"
	FieldTypeFoundation = "Assignment Type - Foundation"
	FieldTypeOther      = "Assignment Type - Other"

	FieldOtherDetails           = "Other - provide details"
	FieldAdditionalInstructions = "Additional details/Special Instructions"
	FieldAttachments            = "Attachments"
)

// OwnershipUnknown is the sentinel recorded by the deterministic extractor
// when the owner-or-tenant question cannot be matched. It is deliberately a
// non-null value so the record reaches validation (and fails the Owner/Tenant
// enum there) instead of being reported as a never-extracted field.
const OwnershipUnknown = "Unknown"

// AssignmentTypeFields maps each assignment-type checkbox field to the
// type name it contributes to AssignmentDetails.AssignmentTypes.
var AssignmentTypeFields = []struct {
	Field string
	Name  string
}{
	{FieldTypeWind, "Wind"},
	{FieldTypeStructural, "Structural"},
	{FieldTypeHail, "Hail"},
	{FieldTypeFoundation, "Foundation"},
	{FieldTypeOther, "Other"},
}

// OptionalFields are the fields whose absence is acceptable. A present but
// empty optional field still costs confidence in the review scorer.
var OptionalFields = []string{
	FieldOtherDetails,
	FieldAdditionalInstructions,
	FieldAttachments,
	FieldLandlordContact,
}
