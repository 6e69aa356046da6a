// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package websearch

import (
	"errors"
	"regexp"
)

// ErrInvalidQuery marks a query Tool.Search refused to send to a provider.
// Callers can map it to a client error with errors.Is.
var ErrInvalidQuery = errors.New("invalid search query")

// maxQueryChars is the length above which a query draws a warning.
const maxQueryChars = 1000

// credentialTermsRe rejects queries that look like credential fishing.
// These terms have no legitimate place in an outbound medical search.
var credentialTermsRe = regexp.MustCompile(`(?i)\b(password|token|secret|key)\b`)

// ValidationResult reports the outcome of a query validation pass.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings"`
}

// ValidateQuery checks an outbound search query before redaction runs.
func ValidateQuery(query string) ValidationResult {
	var warnings []string
	if len(query) > maxQueryChars {
		warnings = append(warnings, "Query unusually long, may be truncated by the search engine")
	}
	if credentialTermsRe.MatchString(query) {
		return ValidationResult{
			Valid: false,
			Error: "Query contains restricted terms",
		}
	}
	return ValidationResult{Valid: true, Warnings: warnings}
}
