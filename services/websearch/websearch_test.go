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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider captures the query it was handed so tests can verify
// the redaction boundary.
type recordingProvider struct {
	lastQuery string
	results   []Result
	err       error
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Search(_ context.Context, query string, _ int) ([]Result, error) {
	p.lastQuery = query
	return p.results, p.err
}

func newTestTool(t *testing.T, provider Provider) *Tool {
	t.Helper()
	engine, err := redaction.NewEngine()
	require.NoError(t, err)
	return NewTool(engine, provider)
}

func TestSearch_RedactsQueryBeforeProvider(t *testing.T) {
	provider := &recordingProvider{}
	tool := newTestTool(t, provider)

	resp, err := tool.Search(context.Background(),
		"treatment options for patient with SSN 123-45-6789", 5)

	require.NoError(t, err)
	assert.NotContains(t, provider.lastQuery, "123-45-6789")
	assert.Contains(t, provider.lastQuery, "[REDACTED_SSN]")
	assert.Equal(t, provider.lastQuery, resp.Query)
	assert.True(t, resp.Metadata.PHIRedacted)
	assert.Equal(t, 1, resp.Metadata.RedactionCount)
}

func TestSearch_CleanQueryPassesThrough(t *testing.T) {
	provider := &recordingProvider{results: []Result{{Title: "hit", RelevanceScore: 0.5}}}
	tool := newTestTool(t, provider)

	resp, err := tool.Search(context.Background(), "diabetes management guidelines", 5)

	require.NoError(t, err)
	assert.Equal(t, "diabetes management guidelines", provider.lastQuery)
	assert.False(t, resp.Metadata.PHIRedacted)
	assert.Equal(t, 0, resp.Metadata.RedactionCount)
	assert.Equal(t, 1, resp.TotalResults)
}

func TestSearch_RestrictedQueryNeverReachesProvider(t *testing.T) {
	provider := &recordingProvider{}
	tool := newTestTool(t, provider)

	_, err := tool.Search(context.Background(), "clinic wifi password reset", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Empty(t, provider.lastQuery)
}

func TestSearch_ProviderErrorIsWrapped(t *testing.T) {
	provider := &recordingProvider{err: errors.New("upstream down")}
	tool := newTestTool(t, provider)

	_, err := tool.Search(context.Background(), "anything", 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording")
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	provider := &recordingProvider{results: []Result{
		{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"},
	}}
	tool := newTestTool(t, provider)

	resp, err := tool.Search(context.Background(), "query", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalResults)
	assert.Len(t, resp.Results, 2)
}

func TestStubProvider_CannedRelevance(t *testing.T) {
	provider := NewStubProvider()

	results, err := provider.Search(context.Background(), "hip replacement recovery", 5)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0.95, results[0].RelevanceScore)
	assert.Equal(t, 0.87, results[1].RelevanceScore)
	assert.Equal(t, 0.82, results[2].RelevanceScore)
	assert.Contains(t, results[0].Title, "hip replacement recovery")
}

func TestValidateQuery(t *testing.T) {
	testCases := []struct {
		name      string
		query     string
		valid     bool
		warnCount int
	}{
		{"normal query", "flu shot schedule", true, 0},
		{"long query", strings.Repeat("a", 1001), true, 1},
		{"password term", "what is the admin password", false, 0},
		{"token term", "API Token rotation", false, 0},
		{"secret term", "trade SECRET filings", false, 0},
		{"key as substring is fine", "monkeypox symptoms", true, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateQuery(tc.query)
			assert.Equal(t, tc.valid, result.Valid)
			assert.Len(t, result.Warnings, tc.warnCount)
			if !tc.valid {
				assert.Equal(t, "Query contains restricted terms", result.Error)
			}
		})
	}
}

func TestFormatResultsForModel(t *testing.T) {
	resp := Response{
		Query: "redacted query",
		Results: []Result{
			{Title: "First", URL: "https://a.example.com", Summary: "summary a", RelevanceScore: 0.95},
			{Title: "Second", URL: "https://b.example.com", Summary: "summary b", RelevanceScore: 0.87},
		},
		TotalResults: 2,
		Metadata:     ResponseMetadata{PHIRedacted: true, RedactionCount: 2},
	}

	text := FormatResultsForModel(resp)

	assert.Contains(t, text, "1. First")
	assert.Contains(t, text, "Relevance: 0.95")
	assert.Contains(t, text, "2. Second")
	assert.Contains(t, text, "2 sensitive item(s) were redacted")
}

func TestFormatResultsForModel_Empty(t *testing.T) {
	assert.Equal(t, "No web search results found.",
		FormatResultsForModel(Response{Results: []Result{}}))
}
