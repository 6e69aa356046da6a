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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponse_Envelope(t *testing.T) {
	results := []SearchResult{{DocID: "doc1", Score: 2, Snippet: "excerpt"}}

	resp := BuildResponse("privacy records", results, false)

	assert.Equal(t, "privacy records", resp.Query)
	assert.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "internal", resp.Metadata.SearchType)
	assert.True(t, resp.Metadata.PHISafe)
	assert.False(t, resp.Metadata.Filtered)
}

func TestBuildResponse_NilResultsBecomeEmptySlice(t *testing.T) {
	resp := BuildResponse("q", nil, true)

	assert.NotNil(t, resp.Results)
	assert.Equal(t, 0, resp.TotalResults)
	assert.True(t, resp.Metadata.Filtered)
}

func TestDateFromFilter(t *testing.T) {
	results := []SearchResult{
		{DocID: "old", Metadata: map[string]string{"date": "2023-12-01"}},
		{DocID: "new", Metadata: map[string]string{"date": "2024-02-01"}},
		{DocID: "undated", Metadata: map[string]string{}},
	}

	kept := FilterResults(results, DateFromFilter("2024-01-01"))

	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].DocID)
}

func TestFormatResultsForModel(t *testing.T) {
	resp := BuildResponse("privacy", []SearchResult{
		{
			DocID:    "hipaa-guidelines",
			Score:    2,
			Snippet:  "HIPAA Privacy Rule establishes national standards...",
			Metadata: map[string]string{"title": "HIPAA Guidelines", "date": "2024-01-01", "category": "compliance"},
		},
	}, false)

	out := FormatResultsForModel(resp)

	assert.Contains(t, out, "Internal Document Search Results:")
	assert.Contains(t, out, "1. Document: hipaa-guidelines")
	assert.Contains(t, out, "Relevance Score: 2")
	assert.Contains(t, out, "Excerpt: HIPAA Privacy Rule")
	assert.Contains(t, out, "Title: HIPAA Guidelines")
	assert.Contains(t, out, "Date: 2024-01-01")
	assert.Contains(t, out, "Category: compliance")
	assert.Contains(t, out, "Total results: 1 (Internal search - PHI safe)")
}

func TestFormatResultsForModel_Empty(t *testing.T) {
	out := FormatResultsForModel(BuildResponse("q", nil, false))
	assert.Equal(t, "No internal documents found matching the query.", out)
}

func TestIndexFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "retention-policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("document retention policy for clinical records"), 0600))

	s := New()
	indexed, err := IndexFile(s, path, "text", map[string]string{"title": "Retention"})
	require.NoError(t, err)

	assert.Equal(t, "retention-policy.txt", indexed.DocID)
	assert.NotEmpty(t, indexed.Hash)
	assert.Equal(t, path, indexed.Metadata["file_path"])
	assert.Equal(t, "text", indexed.Metadata["doc_type"])
	assert.Equal(t, "46", indexed.Metadata["file_size"])
	assert.Equal(t, "Retention", indexed.Metadata["title"])
	assert.NotEmpty(t, indexed.Metadata["indexed_date"])

	results := s.Search("retention", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "retention-policy.txt", results[0].DocID)
}

func TestIndexFile_MissingFile(t *testing.T) {
	s := New()
	_, err := IndexFile(s, filepath.Join(t.TempDir(), "absent.txt"), "text", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}
