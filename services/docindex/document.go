// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docindex is the in-boundary document store. Documents here may
// contain PHI and never leave the gateway. Queries still arrive masked:
// the gateway redacts them before they reach the index, so raw identifiers
// never enter the posting lists or the search logs. The index is a plain
// term-presence inverted index, not a vector store.
package docindex

import (
	"time"
)

// Document is one stored document plus its bookkeeping fields. Seq records
// insertion order and drives tie-breaking when scores are equal.
type Document struct {
	ID          string            `json:"doc_id"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata"`
	Hash        string            `json:"hash"`
	IndexedAt   time.Time         `json:"indexed_at"`
	AccessCount int               `json:"access_count"`
	Seq         uint64            `json:"seq"`
}

// SearchResult is one scored hit. Snippet is a windowed excerpt around the
// first matched term, never the full content.
type SearchResult struct {
	DocID      string            `json:"doc_id"`
	Score      int               `json:"score"`
	Snippet    string            `json:"snippet"`
	Metadata   map[string]string `json:"metadata"`
	AccessedAt time.Time         `json:"accessed_at"`
}

// Response is the wire shape handed back to callers of the file search tool.
type Response struct {
	Query        string           `json:"query"`
	Results      []SearchResult   `json:"results"`
	TotalResults int              `json:"total_results"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	SearchType string `json:"search_type"`
	PHISafe    bool   `json:"phi_safe"`
	Filtered   bool   `json:"filtered"`
}

// BuildResponse wraps results in the tool response envelope. The query is
// echoed as received, which is its redacted form by the time it gets here.
func BuildResponse(query string, results []SearchResult, filtered bool) Response {
	if results == nil {
		results = []SearchResult{}
	}
	return Response{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		Metadata: ResponseMetadata{
			SearchType: "internal",
			PHISafe:    true,
			Filtered:   filtered,
		},
	}
}

// FilterResults keeps the results the predicate accepts, preserving order.
// It reuses the backing array, so the input slice must not be used after.
func FilterResults(results []SearchResult, keep func(SearchResult) bool) []SearchResult {
	filtered := results[:0]
	for _, r := range results {
		if keep(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// DateFromFilter accepts results whose metadata carries a date at or after
// dateFrom. Results without a date are dropped: an undated document cannot
// prove it satisfies the range.
func DateFromFilter(dateFrom string) func(SearchResult) bool {
	return func(r SearchResult) bool {
		d := r.Metadata["date"]
		return d != "" && d >= dateFrom
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
