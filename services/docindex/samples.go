// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package docindex

// sampleDocuments are seeded in development mode so the file search tool
// answers something useful before any real documents are indexed.
var sampleDocuments = []struct {
	id       string
	content  string
	metadata map[string]string
}{
	{
		id: "hipaa-guidelines",
		content: "HIPAA Privacy Rule establishes national standards to protect individuals' " +
			"medical records and other personal health information. Covered entities must " +
			"implement appropriate administrative, physical, and technical safeguards.",
		metadata: map[string]string{"title": "HIPAA Guidelines", "category": "compliance", "date": "2024-01-01"},
	},
	{
		id: "patient-consent-form",
		content: "Patient consent form template for sharing protected health information. " +
			"Requires explicit authorization for use and disclosure of PHI for purposes " +
			"other than treatment, payment, or healthcare operations.",
		metadata: map[string]string{"title": "Patient Consent Form", "category": "forms", "date": "2024-01-15"},
	},
	{
		id: "security-protocols",
		content: "Security protocols for handling electronic protected health information " +
			"(ePHI). Includes encryption requirements, access controls, audit logs, and " +
			"incident response procedures.",
		metadata: map[string]string{"title": "Security Protocols", "category": "security", "date": "2024-02-01"},
	},
}

// SeedSampleDocuments loads the development sample set into the store.
func SeedSampleDocuments(s *Store) error {
	for _, sample := range sampleDocuments {
		if _, err := s.Add(sample.id, sample.content, sample.metadata); err != nil {
			return err
		}
	}
	return nil
}
