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
	"fmt"
)

// StubProvider returns canned results. It exists so the rest of the gateway
// can be exercised end to end before a real engine integration is deployed
// behind the Provider contract.
type StubProvider struct{}

func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (p *StubProvider) Name() string {
	return "stub"
}

// Search echoes the (already redacted) query into three canned results with
// descending relevance.
func (p *StubProvider) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	results := []Result{
		{
			Title:          fmt.Sprintf("Search result for: %s", query),
			URL:            "https://example.com/result1",
			Summary:        fmt.Sprintf("This is a relevant medical information result about %s...", query),
			RelevanceScore: 0.95,
		},
		{
			Title:          fmt.Sprintf("Medical guidelines: %s", query),
			URL:            "https://medical-site.example.com/guidelines",
			Summary:        "Professional medical guidelines and best practices...",
			RelevanceScore: 0.87,
		},
		{
			Title:          fmt.Sprintf("Research article: %s", query),
			URL:            "https://research.example.com/article",
			Summary:        "Peer-reviewed research findings...",
			RelevanceScore: 0.82,
		},
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
