// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package redaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	require.NoError(t, err)
	return engine
}

func TestNewEngine_LoadsEmbeddedPack(t *testing.T) {
	engine := newTestEngine(t)
	assert.Equal(t, "v1.0.0", engine.PolicyVersion())
}

func TestNewEngineFromYAML_RejectsBadPacks(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{
			name: "unparseable yaml",
			yaml: "classifications: [",
		},
		{
			name: "missing version",
			yaml: "classifications:\n  - kind: ssn\n    priority: 1\n",
		},
		{
			name: "unsupported major version",
			yaml: "version: \"v2.0.0\"\nclassifications:\n  - kind: ssn\n    priority: 1\n    patterns:\n      - id: x\n        regex: 'a'\n        confidence: high\n",
		},
		{
			name: "no classifications",
			yaml: "version: \"v1.0.0\"\nclassifications: []\n",
		},
		{
			name: "invalid regex",
			yaml: "version: \"v1.0.0\"\nclassifications:\n  - kind: ssn\n    priority: 1\n    patterns:\n      - id: x\n        regex: '('\n        confidence: high\n",
		},
		{
			name: "invalid confidence",
			yaml: "version: \"v1.0.0\"\nclassifications:\n  - kind: ssn\n    priority: 1\n    patterns:\n      - id: x\n        regex: 'a'\n        confidence: certain\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewEngineFromYAML([]byte(tc.yaml))
			assert.Error(t, err)
			assert.Nil(t, engine)
		})
	}
}

func TestRedact_MasksEachKind(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name     string
		input    string
		kind     Kind
		original string
	}{
		{"dashed ssn", "SSN: 123-45-6789", KindSSN, "123-45-6789"},
		{"bare nine digit ssn", "id 123456789 on file", KindSSN, "123456789"},
		{"dashed phone", "call 555-123-4567 today", KindPhone, "555-123-4567"},
		{"dotted phone", "call 555.123.4567 today", KindPhone, "555.123.4567"},
		{"email", "write to carol@example.org please", KindEmail, "carol@example.org"},
		{"mrn", "chart MRN AB123456 attached", KindMRN, "AB123456"},
		{"slashed dob", "born 01/02/1990 in Tacoma", KindDOB, "01/02/1990"},
		{"street address", "lives at 123 Main Street now", KindAddress, "123 Main Street"},
		{"zip", "area 90210 coverage", KindZip, "90210"},
		{"zip plus four", "area 90210-1234 coverage", KindZip, "90210-1234"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Redact(tc.input)
			assert.NotContains(t, result.Text, tc.original)
			assert.Contains(t, result.Text, tc.kind.Token())
			require.NotEmpty(t, result.Matches)
			assert.Equal(t, tc.kind, result.Matches[0].Kind)
			assert.Equal(t, tc.original, result.Matches[0].Original)
		})
	}
}

func TestRedact_EmailAndPhoneTogether(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("Contact John at john@example.com or 555-123-4567")

	assert.Contains(t, result.Text, "[REDACTED_EMAIL]")
	assert.Contains(t, result.Text, "[REDACTED_PHONE]")
	assert.NotContains(t, result.Text, "john@example.com")
	assert.NotContains(t, result.Text, "555-123-4567")
	assert.GreaterOrEqual(t, len(result.Matches), 2)
	// A bare first name with no honorific is out of scope for the
	// heuristic and must survive.
	assert.Contains(t, result.Text, "John")
}

func TestRedact_HonorificName(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"doctor", "Dr. Jane Smith reviewed the chart", "Dr. [REDACTED_NAME] reviewed the chart"},
		{"no trailing period", "Ms Alice Jones called back", "Ms [REDACTED_NAME] called back"},
		{"multi word surname", "Prof. Anna Maria Lopez presented", "Prof. [REDACTED_NAME] presented"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Redact(tc.input)
			assert.Equal(t, tc.want, result.Text)
			require.Len(t, result.Matches, 1)
			assert.Equal(t, KindName, result.Matches[0].Kind)
		})
	}
}

func TestRedact_LowercaseNameIsNotMatched(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("dr. jane smith reviewed the chart")

	assert.Equal(t, "dr. jane smith reviewed the chart", result.Text)
	assert.Empty(t, result.Matches)
}

func TestRedact_EmptyAndCleanInput(t *testing.T) {
	engine := newTestEngine(t)

	empty := engine.Redact("")
	assert.Equal(t, "", empty.Text)
	assert.Empty(t, empty.Matches)
	assert.False(t, empty.Redacted())

	clean := engine.Redact("general question about hypertension guidelines")
	assert.Equal(t, "general question about hypertension guidelines", clean.Text)
	assert.Empty(t, clean.Matches)
}

func TestRedact_IsIdempotent(t *testing.T) {
	engine := newTestEngine(t)

	first := engine.Redact("Call 555-123-4567 about Dr. Jane Smith, SSN 123-45-6789")
	second := engine.Redact(first.Text)

	assert.Equal(t, first.Text, second.Text)
	assert.Empty(t, second.Matches)
}

func TestRedact_DuplicateOccurrencesAllMasked(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("fax 555-123-4567 or call 555-123-4567")

	assert.NotContains(t, result.Text, "555-123-4567")
	assert.Equal(t, 2, strings.Count(result.Text, "[REDACTED_PHONE]"))
	assert.Len(t, result.Matches, 2)
}

func TestRedact_SSNWinsOverZip(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("identifier 123456789")

	assert.Contains(t, result.Text, "[REDACTED_SSN]")
	assert.NotContains(t, result.Text, "[REDACTED_ZIP]")
	require.Len(t, result.Matches, 1)
	assert.Equal(t, KindSSN, result.Matches[0].Kind)
}

func TestRedact_CaseInsensitiveStructuredPatterns(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("records ab1234567 and CD7654321")

	assert.Equal(t, 2, strings.Count(result.Text, "[REDACTED_MRN]"))
}

func TestResult_KindsPreservesDetectionOrder(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("SSN 123-45-6789 reachable at bob@example.com")

	assert.Equal(t, []Kind{KindSSN, KindEmail}, result.Kinds())
	assert.True(t, result.Redacted())
}

func TestMatch_OriginalNeverSerialized(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Redact("SSN 123-45-6789")
	require.NotEmpty(t, result.Matches)

	raw, err := json.Marshal(result.Matches)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "123-45-6789")
	assert.Contains(t, string(raw), `"kind":"ssn"`)
}

func TestScanContent_ReportsLineFindings(t *testing.T) {
	engine := newTestEngine(t)

	content := "patient ssn 123-45-6789\nno phi on this line\nemail bob@example.com\n"
	findings := engine.ScanContent(content)

	require.Len(t, findings, 2)
	assert.Equal(t, 1, findings[0].LineNumber)
	assert.Equal(t, KindSSN, findings[0].Kind)
	assert.Equal(t, "PHI-SSN-001", findings[0].PatternId)
	assert.Equal(t, 3, findings[1].LineNumber)
	assert.Equal(t, KindEmail, findings[1].Kind)
}

func TestScanContent_PreviewCarriesNoMatchedText(t *testing.T) {
	engine := newTestEngine(t)

	findings := engine.ScanContent("ssn 123-45-6789")

	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.NotContains(t, f.Preview, "123-45-6789")
		assert.Equal(t, f.Kind.Token(), f.Preview)
	}
}

func TestKind_Token(t *testing.T) {
	assert.Equal(t, "[REDACTED_SSN]", KindSSN.Token())
	assert.Equal(t, "[REDACTED_NAME]", KindName.Token())
}

func BenchmarkRedact(b *testing.B) {
	engine, err := NewEngine()
	if err != nil {
		b.Fatalf("failed to build the engine: %v", err)
	}
	input := "Dr. Jane Smith, SSN 123-45-6789, reachable at jane@example.com " +
		"or 555-123-4567, lives at 42 Cedar Lane, 90210, DOB 01/02/1990, MRN AB123456."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Redact(input)
	}
}
