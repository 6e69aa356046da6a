// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/llm"
)

var chatTracer = otel.Tracer("cascadia.gateway.handlers")

// archiveTimeout bounds the background archive write for one turn.
const archiveTimeout = 10 * time.Second

// HandleChat runs the synchronous chat pipeline: validate, redact, filter,
// complete against the model, redact and filter the reply, then archive the
// redacted turn off the request path.
func HandleChat(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()
		start := time.Now()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			env.Metrics.RecordChatRequest("chat", false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		_, sessionID := env.Sessions.GetOrCreate(req.SessionID)
		span.SetAttributes(attribute.String("session.id", sessionID))

		redacted := env.Redactor.Redact(req.Message)
		if redacted.Redacted() {
			env.Metrics.RecordRedactions(redactionKindCounts(redacted))
			env.recordAudit(ctx, extensions.AuditEvent{
				EventType:    "redaction.applied",
				UserID:       userID(c),
				Action:       "send",
				ResourceType: "session",
				ResourceID:   sessionID,
				Outcome:      "redacted",
				Metadata:     auditKindMetadata(redactionKindCounts(redacted)),
			})
		}

		filtered, err := env.Filter.FilterInput(ctx, redacted.Text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "input filter rejected the message")
			env.Metrics.RecordChatRequest("chat", false)
			env.recordAudit(ctx, extensions.AuditEvent{
				EventType:    "chat.blocked",
				UserID:       userID(c),
				Action:       "send",
				ResourceType: "session",
				ResourceID:   sessionID,
				Outcome:      "blocked",
			})
			c.JSON(http.StatusForbidden, gin.H{"error": "message rejected by content filter"})
			return
		}
		userText := filtered.Filtered

		env.Sessions.Append(sessionID, datatypes.Message{
			Role:    datatypes.RoleUser,
			Content: userText,
		})

		modelStart := time.Now()
		answer, err := env.Model.Chat(ctx, env.Sessions.History(sessionID), llm.GenerationParams{})
		env.Metrics.RecordModelRequest(env.Model.Name(), time.Since(modelStart).Seconds(), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model backend failed")
			env.Metrics.RecordChatRequest("chat", false)
			slog.Error("chat completion failed",
				"session_id", sessionID, "backend", env.Model.Name(), "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "model backend unavailable"})
			return
		}

		// The reply crosses the same boundary as the user message: a model
		// can echo PHI, and only redacted text may reach the session store
		// or the archive.
		answerRedacted := env.Redactor.Redact(answer)
		if answerRedacted.Redacted() {
			env.Metrics.RecordRedactions(redactionKindCounts(answerRedacted))
			env.recordAudit(ctx, extensions.AuditEvent{
				EventType:    "redaction.applied",
				UserID:       userID(c),
				Action:       "reply",
				ResourceType: "session",
				ResourceID:   sessionID,
				Outcome:      "redacted",
				Metadata:     auditKindMetadata(redactionKindCounts(answerRedacted)),
			})
		}

		outFiltered, err := env.Filter.FilterOutput(ctx, answerRedacted.Text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "output filter rejected the reply")
			env.Metrics.RecordChatRequest("chat", false)
			env.recordAudit(ctx, extensions.AuditEvent{
				EventType:    "chat.blocked",
				UserID:       userID(c),
				Action:       "reply",
				ResourceType: "session",
				ResourceID:   sessionID,
				Outcome:      "blocked",
			})
			c.JSON(http.StatusForbidden, gin.H{"error": "reply withheld by content filter"})
			return
		}
		answerText := outFiltered.Filtered
		redactionCount := len(redacted.Matches) + len(answerRedacted.Matches)

		env.Sessions.Append(sessionID, datatypes.Message{
			Role:    datatypes.RoleAssistant,
			Content: answerText,
		})

		env.archiveTurn(sessionID, userText, answerText, redactionCount)
		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "chat.message",
			UserID:       userID(c),
			Action:       "send",
			ResourceType: "session",
			ResourceID:   sessionID,
			Outcome:      "success",
			Metadata:     map[string]any{"redaction_count": redactionCount},
		})
		env.Metrics.RecordChatRequest("chat", true)

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			SessionID:        sessionID,
			Answer:           answerText,
			RedactionCount:   redactionCount,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		})
	}
}

// archiveTurn persists one redacted turn in the background. Archiving is
// best effort; a failed write is logged and the reply is unaffected.
func (e *Env) archiveTurn(sessionID, question, answer string, redactionCount int) {
	if e.Archive == nil {
		return
	}
	turn := &datatypes.ArchivedTurn{
		SessionID:      sessionID,
		Question:       question,
		Answer:         answer,
		RedactionCount: redactionCount,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := turn.Save(ctx, e.Archive); err != nil {
			slog.Error("failed to archive the conversation turn",
				"session_id", sessionID, "error", err)
		}
	}()
}

// auditKindMetadata converts per-kind redaction counts into audit metadata.
func auditKindMetadata(kinds map[string]int) map[string]any {
	meta := make(map[string]any, len(kinds)+1)
	total := 0
	for kind, n := range kinds {
		meta["kind_"+kind] = n
		total += n
	}
	meta["redaction_count"] = total
	return meta
}
