// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package browser

import (
	"fmt"
	"strings"
)

// suspiciousURLFragments are rejected anywhere in a navigate URL, not just
// as its scheme, so an injection smuggled into a query string fails too.
var suspiciousURLFragments = []string{"javascript:", "data:", "file:"}

// forbiddenActionTypes can run arbitrary script in the automation channel
// and are never allowed.
var forbiddenActionTypes = map[string]struct{}{
	"execute_script": {},
	"eval":           {},
}

// maxActionsBeforeWarning is the plan size above which execution time
// becomes worth warning about.
const maxActionsBeforeWarning = 100

// ValidationResult reports the outcome of one validation scan. A hard
// failure carries only the error: warnings collected before the failure are
// discarded, since the plan is rejected as a whole.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings"`
}

// ValidateActions checks a proposed action sequence in one left-to-right
// scan, short-circuiting on the first hard failure.
func ValidateActions(actions []Action) ValidationResult {
	var warnings []string

	for i, action := range actions {
		if action.Type == "" {
			return invalid(fmt.Sprintf("Action %d missing 'type' field", i+1))
		}

		if _, forbidden := forbiddenActionTypes[action.Type]; forbidden {
			return invalid(fmt.Sprintf("Action type '%s' not allowed for security", action.Type))
		}

		switch action.Type {
		case "navigate":
			if action.URL == "" {
				return invalid(fmt.Sprintf("Navigate action %d missing 'url'", i+1))
			}
			lowered := strings.ToLower(action.URL)
			for _, fragment := range suspiciousURLFragments {
				if strings.Contains(lowered, fragment) {
					return invalid(fmt.Sprintf("Suspicious URL protocol in action %d", i+1))
				}
			}
		case "click", "type":
			if action.Target == "" {
				warnings = append(warnings, fmt.Sprintf("Action %d missing 'target' selector", i+1))
			}
			if action.Type == "type" && strings.Contains(strings.ToLower(action.Target), "password") {
				warnings = append(warnings, fmt.Sprintf("Action %d may enter sensitive data", i+1))
			}
		}
	}

	if len(actions) > maxActionsBeforeWarning {
		warnings = append(warnings, "Large number of actions may take time to execute")
	}

	return ValidationResult{Valid: true, Warnings: warnings}
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Error: reason}
}
