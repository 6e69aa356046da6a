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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

// HandleListSessions reports the live in-memory sessions and, when an
// archive is configured, the sessions recorded there.
func HandleListSessions(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"active_sessions": env.Sessions.Count()}

		if env.Archive != nil {
			archived, err := listArchivedSessions(c.Request.Context(), env)
			if err != nil {
				slog.Error("failed to query the session archive", "error", err)
				c.JSON(http.StatusInternalServerError,
					gin.H{"error": "failed to query the session archive"})
				return
			}
			body["archived_sessions"] = archived
		}

		c.JSON(http.StatusOK, body)
	}
}

func listArchivedSessions(ctx context.Context, env *Env) ([]datatypes.SessionResult, error) {
	result, err := env.Archive.GraphQL().Get().
		WithClassName("GatewaySession").
		WithFields(
			graphql.Field{Name: "session_id"},
			graphql.Field{Name: "timestamp"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.SessionQueryResponse](result)
	if err != nil {
		return nil, err
	}
	return parsed.Get.GatewaySession, nil
}

// HandleClearSession forgets one session, or every session when the request
// names none. The archive copy is removed as well so a cleared session
// leaves nothing behind.
func HandleClearSession(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleClearSession")
		defer span.End()

		var req datatypes.ClearSessionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.SessionID == "" {
			cleared := env.Sessions.ClearAll()
			env.recordAudit(ctx, extensions.AuditEvent{
				EventType:    "session.cleared",
				UserID:       userID(c),
				Action:       "clear_all",
				ResourceType: "session",
				Outcome:      "success",
				Metadata:     map[string]any{"cleared_count": cleared},
			})
			c.JSON(http.StatusOK, gin.H{"status": "success", "cleared_sessions": cleared})
			return
		}

		if err := env.Sessions.Clear(req.SessionID); err != nil {
			if errors.Is(err, datatypes.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
			return
		}
		deleteArchivedSession(ctx, env, req.SessionID)

		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "session.cleared",
			UserID:       userID(c),
			Action:       "clear",
			ResourceType: "session",
			ResourceID:   req.SessionID,
			Outcome:      "success",
		})
		c.JSON(http.StatusOK, gin.H{"status": "success", "cleared_session_id": req.SessionID})
	}
}

// deleteArchivedSession removes the archived turns and the session object
// itself. Failures are logged; the in-memory clear already succeeded.
func deleteArchivedSession(ctx context.Context, env *Env, sessionID string) {
	if env.Archive == nil {
		return
	}

	where := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)

	if _, err := env.Archive.Batch().ObjectsBatchDeleter().
		WithClassName("GatewayConversation").
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx); err != nil {
		slog.Error("failed to delete archived turns", "session_id", sessionID, "error", err)
	}
	if _, err := env.Archive.Batch().ObjectsBatchDeleter().
		WithClassName("GatewaySession").
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx); err != nil {
		slog.Error("failed to delete the archived session", "session_id", sessionID, "error", err)
	}
}
