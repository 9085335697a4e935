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

import "fmt"

// systemInstruction frames every extraction completion call.
const systemInstruction = "You are an assistant that extracts structured data from forensic engineering emails."

// promptTemplate lists the exact target fields and a literal example of the
// output shape. The field names and grouping here must stay aligned with
// the group mapping tables in model.go.
const promptTemplate = `Extract the following fields from the given forensic engineering email and provide the data in JSON format. Ensure that all fields are present and correctly populated.

Fields to extract:
- Requesting Party Insurance Company
- Handler
- Carrier Claim Number
- Insured Information:
  - Name
  - Contact #
  - Loss Address
  - Public Adjuster
  - Ownership (Owner or Tenant)
  - Landlord Contact (if the insured is a Tenant)
- Adjuster Information:
  - Adjuster Name
  - Adjuster Phone Number
  - Adjuster Email
  - Job Title
  - Address
  - Policy Number
- Assignment Information:
  - Date of Loss/Occurrence
  - Cause of loss
  - Facts of Loss
  - Loss Description
  - Residence Occupied During Loss
  - Someone home at time of damage
  - Repair or Mitigation Progress
  - Type
  - Inspection type
- Assignment Type:
  - Wind (true/false)
  - Structural (true/false)
  - Hail (true/false)
  - Foundation (true/false)
  - Other (true/false)
- Other - provide details
- Additional details/Special Instructions
- Attachments

Email Content:
%s

Provide the extracted data in the following JSON format:
{
  "Requesting Party Insurance Company": "",
  "Handler": "",
  "Carrier Claim Number": "",
  "Insured Information": {
    "Name": "",
    "Contact #": "",
    "Loss Address": "",
    "Public Adjuster": "",
    "Ownership": "",
    "Landlord Contact": ""
  },
  "Adjuster Information": {
    "Adjuster Name": "",
    "Adjuster Phone Number": "",
    "Adjuster Email": "",
    "Job Title": "",
    "Address": "",
    "Policy Number": ""
  },
  "Assignment Information": {
    "Date of Loss/Occurrence": "",
    "Cause of loss": "",
    "Facts of Loss": "",
    "Loss Description": "",
    "Residence Occupied During Loss": "",
    "Someone home at time of damage": "",
    "Repair or Mitigation Progress": "",
    "Type": "",
    "Inspection type": ""
  },
  "Assignment Type": {
    "Wind": false,
    "Structural": false,
    "Hail": false,
    "Foundation": false,
    "Other": false
  },
  "Other - provide details": "",
  "Additional details/Special Instructions": "",
  "Attachments": []
}
`

// buildPrompt embeds the normalized email text into the extraction prompt.
func buildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}
