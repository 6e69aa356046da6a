// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package websearch is the outbound search tool. Queries cross the trust
// boundary here, so every query is redacted before it reaches a provider,
// no matter which provider is plugged in.
package websearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("cascadia.websearch")

// Result is one hit returned by a search provider.
type Result struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Response is the tool's wire shape. Query holds the redacted query, never
// the raw one.
type Response struct {
	Query        string           `json:"query"`
	Results      []Result         `json:"results"`
	TotalResults int              `json:"total_results"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	SearchEngine   string `json:"search_engine"`
	PHIRedacted    bool   `json:"phi_redacted"`
	RedactionCount int    `json:"redaction_count"`
}

// Provider performs the actual search against some backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Tool wraps a provider with the redaction boundary.
type Tool struct {
	engine   *redaction.Engine
	provider Provider
}

// NewTool builds a search tool. A nil provider falls back to the stub.
func NewTool(engine *redaction.Engine, provider Provider) *Tool {
	if provider == nil {
		provider = NewStubProvider()
	}
	return &Tool{engine: engine, provider: provider}
}

// Search validates and redacts the query, runs the provider on the
// sanitized form, and wraps the hits in the tool envelope. A query that
// fails validation returns ErrInvalidQuery without touching the provider;
// redaction never fails.
func (t *Tool) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	ctx, span := tracer.Start(ctx, "Tool.Search")
	defer span.End()

	if maxResults <= 0 {
		maxResults = 5
	}

	validated := ValidateQuery(query)
	if !validated.Valid {
		return Response{}, fmt.Errorf("%w: %s", ErrInvalidQuery, validated.Error)
	}
	for _, warning := range validated.Warnings {
		slog.Warn("outbound search query flagged", "warning", warning)
	}

	redacted := t.engine.Redact(query)
	if redacted.Redacted() {
		slog.Info("redacted PHI from outbound search query",
			"matches", len(redacted.Matches),
			"kinds", redacted.Kinds())
	}
	span.SetAttributes(
		attribute.Int("search.redaction_count", len(redacted.Matches)),
		attribute.Int("search.max_results", maxResults),
	)

	results, err := t.provider.Search(ctx, redacted.Text, maxResults)
	if err != nil {
		return Response{}, fmt.Errorf("search provider %s failed: %w", t.provider.Name(), err)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	if results == nil {
		results = []Result{}
	}

	return Response{
		Query:        redacted.Text,
		Results:      results,
		TotalResults: len(results),
		Metadata: ResponseMetadata{
			SearchEngine:   t.provider.Name(),
			PHIRedacted:    redacted.Redacted(),
			RedactionCount: len(redacted.Matches),
		},
	}, nil
}
