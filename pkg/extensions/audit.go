// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent is one security-relevant event for the compliance trail.
//
// Events are categorized by EventType in "category.action" form:
//
//   - "auth.failed", "auth.granted"
//   - "chat.message", "chat.response"
//   - "redaction.applied"
//   - "plan.created", "plan.confirmed", "plan.cancelled", "plan.expired"
//   - "document.indexed", "document.searched"
//   - "search.web"
//
// Metadata must carry counts and identifiers only. Message content and
// matched PHI text never belong in an audit event.
type AuditEvent struct {
	// EventType categorizes the event, e.g. "plan.confirmed".
	EventType string

	// Timestamp is when the event occurred, in UTC. Implementations fill
	// it in when zero.
	Timestamp time.Time

	// UserID identifies who acted. "system" for automated actions.
	UserID string

	// Action is the operation attempted: "send", "confirm", "index".
	Action string

	// ResourceType is the resource category: "message", "plan", "document".
	ResourceType string

	// ResourceID names the specific resource, when one exists.
	ResourceID string

	// Outcome is "success", "failure", "blocked", or "error".
	Outcome string

	// Metadata holds event-specific counts and identifiers.
	Metadata map[string]any
}

// AuditFilter selects events for a Query.
type AuditFilter struct {
	// EventType restricts to one event type when non-empty.
	EventType string

	// UserID restricts to one user when non-empty.
	UserID string

	// Since excludes events before this time when non-zero.
	Since time.Time

	// Limit caps the number of returned events; zero means no cap.
	Limit int
}

// AuditLogger records and retrieves audit events.
// Implementations must be safe for concurrent use.
type AuditLogger interface {
	// Log records one event. Implementations may buffer; Flush forces
	// delivery.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush delivers any buffered events.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. The default when no trail is
// configured.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }

func (l *NopAuditLogger) Query(_ context.Context, _ AuditFilter) ([]AuditEvent, error) {
	return nil, nil
}

func (l *NopAuditLogger) Flush(_ context.Context) error { return nil }

var _ AuditLogger = (*NopAuditLogger)(nil)
