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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateActions_HardFailures(t *testing.T) {
	testCases := []struct {
		name    string
		actions []Action
		errPart string
	}{
		{
			name:    "missing type",
			actions: []Action{{Target: "#button"}},
			errPart: "missing 'type'",
		},
		{
			name:    "execute_script forbidden",
			actions: []Action{{Type: "execute_script", Text: "alert(1)"}},
			errPart: "not allowed for security",
		},
		{
			name:    "eval forbidden",
			actions: []Action{{Type: "eval"}},
			errPart: "not allowed for security",
		},
		{
			name:    "navigate without url",
			actions: []Action{{Type: "navigate"}},
			errPart: "missing 'url'",
		},
		{
			name:    "javascript url",
			actions: []Action{{Type: "navigate", URL: "javascript:alert(1)"}},
			errPart: "Suspicious URL",
		},
		{
			name:    "data url",
			actions: []Action{{Type: "navigate", URL: "data:text/html,<script>"}},
			errPart: "Suspicious URL",
		},
		{
			name:    "file url",
			actions: []Action{{Type: "navigate", URL: "file:///etc/passwd"}},
			errPart: "Suspicious URL",
		},
		{
			name:    "uppercase javascript url",
			actions: []Action{{Type: "navigate", URL: "JAVASCRIPT:alert(1)"}},
			errPart: "Suspicious URL",
		},
		{
			name: "smuggled scheme in query string",
			actions: []Action{
				{Type: "navigate", URL: "https://example.com/?next=javascript:alert(1)"},
			},
			errPart: "Suspicious URL",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateActions(tc.actions)
			assert.False(t, result.Valid)
			assert.Contains(t, result.Error, tc.errPart)
		})
	}
}

func TestValidateActions_HardFailureDiscardsEarlierWarnings(t *testing.T) {
	// The first action would warn, but the second is fatal: the plan is
	// rejected as a whole and no warnings survive.
	result := ValidateActions([]Action{
		{Type: "click"},
		{Type: "execute_script"},
	})

	assert.False(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidateActions_Warnings(t *testing.T) {
	testCases := []struct {
		name     string
		actions  []Action
		warnPart string
	}{
		{
			name:     "click without target",
			actions:  []Action{{Type: "click"}},
			warnPart: "missing 'target'",
		},
		{
			name:     "type without target",
			actions:  []Action{{Type: "type", Text: "hello"}},
			warnPart: "missing 'target'",
		},
		{
			name:     "type into password field",
			actions:  []Action{{Type: "type", Target: "#password-input", Text: "hunter2"}},
			warnPart: "sensitive data",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateActions(tc.actions)
			assert.True(t, result.Valid)
			assert.Empty(t, result.Error)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tc.warnPart)
		})
	}
}

func TestValidateActions_LargePlanWarnsOnly(t *testing.T) {
	actions := make([]Action, 0, 101)
	for i := 0; i < 101; i++ {
		actions = append(actions, Action{
			Type: "navigate",
			URL:  fmt.Sprintf("https://example.com/page/%d", i),
		})
	}

	result := ValidateActions(actions)

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "may take time")
}

func TestValidateActions_CleanPlan(t *testing.T) {
	result := ValidateActions([]Action{
		{Type: "navigate", URL: "https://portal.example.com"},
		{Type: "click", Target: "#search"},
		{Type: "type", Target: "#query", Text: "visiting hours"},
		{Type: "screenshot"},
	})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Warnings)
}
