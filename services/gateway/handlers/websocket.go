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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/llm"
)

// WSRequest is one inbound WebSocket frame.
type WSRequest struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// WSEvent is one outbound WebSocket frame. The client switches on Action.
type WSEvent struct {
	Action         string `json:"action"`
	SessionID      string `json:"sessionId,omitempty"`
	Content        string `json:"content,omitempty"`
	AnswerHash     string `json:"answer_hash,omitempty"`
	RedactionCount int    `json:"redaction_count,omitempty"`
	Error          string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the gateway fronts a local deployment
	},
	ReadBufferSize:  10 * 1024 * 1024,
	WriteBufferSize: 10 * 1024 * 1024,
}

// sendJSON writes one frame and logs instead of failing: a dead socket is
// discovered on the next read.
func sendJSON(ws *websocket.Conn, v any) {
	if err := ws.WriteJSON(v); err != nil {
		slog.Warn("failed to write to the websocket", "error", err)
	}
}

// HandleWebSocketChat runs the streaming chat loop. Each connection gets a
// session; tokens stream to the client as the model produces them and are
// accumulated in locked memory until the turn is complete.
func HandleWebSocketChat(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade to a websocket", "error", err)
			return
		}
		defer ws.Close()

		env.Metrics.WebsocketOpened()
		defer env.Metrics.WebsocketClosed()

		sessionID := uuid.New().String()
		env.Sessions.GetOrCreate(sessionID)
		sendJSON(ws, WSEvent{Action: "session_created", SessionID: sessionID})

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket closed unexpectedly", "session_id", sessionID, "error", err)
				}
				return
			}
			if req.SessionID != "" {
				sessionID = req.SessionID
				env.Sessions.GetOrCreate(sessionID)
			}

			switch req.Action {
			case "clear_session":
				if err := env.Sessions.Clear(sessionID); err != nil {
					sendJSON(ws, WSEvent{Action: "error", Error: "session not found"})
					continue
				}
				sendJSON(ws, WSEvent{Action: "session_cleared", SessionID: sessionID})

			case "chat", "":
				if req.Message == "" {
					sendJSON(ws, WSEvent{Action: "error", Error: "empty message"})
					continue
				}
				env.streamTurn(c, ws, sessionID, req.Message)

			default:
				sendJSON(ws, WSEvent{Action: "error", Error: "unknown action: " + req.Action})
			}
		}
	}
}

// streamTurn runs one redact-stream-archive cycle over the socket.
func (e *Env) streamTurn(c *gin.Context, ws *websocket.Conn, sessionID, message string) {
	ctx := c.Request.Context()

	redacted := e.Redactor.Redact(message)
	if redacted.Redacted() {
		e.Metrics.RecordRedactions(redactionKindCounts(redacted))
		e.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "redaction.applied",
			UserID:       userID(c),
			Action:       "send",
			ResourceType: "session",
			ResourceID:   sessionID,
			Outcome:      "redacted",
			Metadata:     auditKindMetadata(redactionKindCounts(redacted)),
		})
	}

	filtered, err := e.Filter.FilterInput(ctx, redacted.Text)
	if err != nil {
		sendJSON(ws, WSEvent{Action: "error", Error: "message rejected by content filter"})
		return
	}
	userText := filtered.Filtered

	acc, err := NewTokenAccumulator()
	if err != nil {
		slog.Error("failed to allocate a token accumulator", "error", err)
		sendJSON(ws, WSEvent{Action: "error", Error: "server memory configuration error"})
		return
	}
	defer acc.Destroy()

	e.Sessions.Append(sessionID, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: userText,
	})

	err = e.Model.ChatStream(ctx, e.Sessions.History(sessionID), llm.GenerationParams{},
		func(event llm.StreamEvent) error {
			switch event.Type {
			case llm.StreamEventToken:
				if err := acc.Write(event.Content); err != nil {
					return err
				}
				sendJSON(ws, WSEvent{Action: "token", Content: event.Content})
			case llm.StreamEventError:
				sendJSON(ws, WSEvent{Action: "error", Error: event.Error})
			}
			return nil
		})
	if err != nil {
		slog.Error("streaming chat failed", "session_id", sessionID, "error", err)
		e.Metrics.RecordChatRequest("ws_chat", false)
		sendJSON(ws, WSEvent{Action: "error", Error: "model backend failed mid-stream"})
		return
	}

	answer, answerHash, err := acc.Finalize()
	if err != nil {
		slog.Error("failed to finalize the streamed reply", "session_id", sessionID, "error", err)
		e.Metrics.RecordChatRequest("ws_chat", false)
		sendJSON(ws, WSEvent{Action: "error", Error: "failed to assemble the reply"})
		return
	}

	// Tokens already streamed to the client, but the persisted turn still
	// crosses the redaction boundary: the assembled reply is masked and
	// filtered before it reaches the session store or the archive.
	answerRedacted := e.Redactor.Redact(answer)
	if answerRedacted.Redacted() {
		e.Metrics.RecordRedactions(redactionKindCounts(answerRedacted))
		e.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "redaction.applied",
			UserID:       userID(c),
			Action:       "reply",
			ResourceType: "session",
			ResourceID:   sessionID,
			Outcome:      "redacted",
			Metadata:     auditKindMetadata(redactionKindCounts(answerRedacted)),
		})
	}
	outFiltered, err := e.Filter.FilterOutput(ctx, answerRedacted.Text)
	if err != nil {
		e.Metrics.RecordChatRequest("ws_chat", false)
		sendJSON(ws, WSEvent{Action: "error", Error: "reply withheld by content filter"})
		return
	}
	answerText := outFiltered.Filtered
	redactionCount := len(redacted.Matches) + len(answerRedacted.Matches)

	e.Sessions.Append(sessionID, datatypes.Message{
		Role:    datatypes.RoleAssistant,
		Content: answerText,
	})
	e.archiveTurn(sessionID, userText, answerText, redactionCount)
	e.recordAudit(ctx, extensions.AuditEvent{
		EventType:    "chat.message",
		UserID:       userID(c),
		Action:       "send",
		ResourceType: "session",
		ResourceID:   sessionID,
		Outcome:      "success",
		Metadata:     map[string]any{"redaction_count": redactionCount},
	})
	e.Metrics.RecordChatRequest("ws_chat", true)

	sendJSON(ws, WSEvent{
		Action:         "done",
		SessionID:      sessionID,
		AnswerHash:     answerHash,
		RedactionCount: redactionCount,
	})
}
