// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSource_AcceptsTypicalNames(t *testing.T) {
	for _, source := range []string{
		"clinic_hours.txt",
		"visit 2024-03-12.note",
		"SOAP-0412.soap",
		"referral.md",
	} {
		assert.NoError(t, ValidateSource(source), source)
	}
}

func TestValidateSource_RejectsTraversalAndSeparators(t *testing.T) {
	for _, source := range []string{
		"",
		"../etc/passwd",
		"notes/visit.txt",
		`notes\visit.txt`,
		"a..b.txt",
		".hidden",
		strings.Repeat("x", 121),
	} {
		assert.Error(t, ValidateSource(source), "expected %q to be rejected", source)
	}
}

func TestValidateSources_ListsAllInvalid(t *testing.T) {
	err := ValidateSources([]string{"good.txt", "../bad", "also/bad"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "../bad")
	assert.Contains(t, err.Error(), "also/bad")
}

func TestSanitizeSource_TrimsWhitespace(t *testing.T) {
	source, err := SanitizeSource("  intake.txt  ")

	require.NoError(t, err)
	assert.Equal(t, "intake.txt", source)
}

func TestSanitizeSource_RejectsInvalid(t *testing.T) {
	_, err := SanitizeSource("../../secrets")
	assert.Error(t, err)
}
