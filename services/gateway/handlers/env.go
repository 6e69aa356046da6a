// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP and WebSocket request handlers for the
// gateway service. Every handler enforces the redaction boundary: user text
// is redacted before it reaches the model, the session store, or the archive.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/browser"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/middleware"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
	"github.com/CascadiaHealth/CascadiaGate/services/llm"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
	"github.com/CascadiaHealth/CascadiaGate/services/websearch"
)

// Env bundles the shared dependencies every handler draws from. Archive may
// be nil, which disables conversation archiving; everything else must be set
// before the router is built (NewEnv fills the extension points with no-ops).
type Env struct {
	Redactor *redaction.Engine
	Sessions *datatypes.SessionStore
	Model    llm.Client
	Index    *docindex.Store
	Plans    *browser.Controller
	Search   *websearch.Tool
	Metrics  *observability.GatewayMetrics
	Audit    extensions.AuditLogger
	Filter   extensions.MessageFilter
	Archive  *weaviate.Client
}

// NewEnv normalizes an Env: nil extension points become no-op
// implementations and nil metrics fall back to the process-wide instance.
func NewEnv(env Env) *Env {
	if env.Audit == nil {
		env.Audit = &extensions.NopAuditLogger{}
	}
	if env.Filter == nil {
		env.Filter = &extensions.NopMessageFilter{}
	}
	if env.Metrics == nil {
		if observability.DefaultMetrics == nil {
			observability.InitMetrics()
		}
		env.Metrics = observability.DefaultMetrics
	}
	return &env
}

// userID resolves the acting user for audit records. Unauthenticated routes
// report "anonymous".
func userID(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil {
		return info.UserID
	}
	return "anonymous"
}

// recordAudit writes an event and logs the failure instead of propagating
// it. An unreachable audit sink must not fail the request it describes.
// The event is mirrored onto the active span so traces show where in a
// request each audit record was cut.
func (e *Env) recordAudit(ctx context.Context, event extensions.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	trace.SpanFromContext(ctx).AddEvent("audit."+event.EventType, trace.WithAttributes(
		attribute.String("audit.action", event.Action),
		attribute.String("audit.outcome", event.Outcome),
	))
	if err := e.Audit.Log(ctx, event); err != nil {
		slog.Error("failed to record the audit event",
			"event_type", event.EventType, "error", err)
	}
}

// redactionKindCounts tallies matches per classifier kind for metrics and
// audit metadata. Counts only, never content.
func redactionKindCounts(result redaction.Result) map[string]int {
	if len(result.Matches) == 0 {
		return nil
	}
	counts := make(map[string]int, 4)
	for _, kind := range result.Kinds() {
		counts[string(kind)]++
	}
	return counts
}
