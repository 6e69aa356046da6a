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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestSocket upgrades against a fresh server and consumes the
// session_created frame.
func dialTestSocket(t *testing.T, env *Env) (*websocket.Conn, string) {
	t.Helper()
	router := createTestRouter("GET", "/v1/chat/ws", HandleWebSocketChat(env))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var created WSEvent
	require.NoError(t, conn.ReadJSON(&created))
	require.Equal(t, "session_created", created.Action)
	return conn, created.SessionID
}

// readUntilDone drains token frames and returns the done frame.
func readUntilDone(t *testing.T, conn *websocket.Conn) WSEvent {
	t.Helper()
	for {
		var event WSEvent
		require.NoError(t, conn.ReadJSON(&event))
		switch event.Action {
		case "done":
			return event
		case "error":
			t.Fatalf("unexpected error frame: %s", event.Error)
		}
	}
}

func TestWebSocketChat_StreamsTokensAndCompletes(t *testing.T) {
	env := newTestEnv(t, &mockModel{StreamTokens: []string{"The clinic ", "opens at eight."}})
	conn, sessionID := dialTestSocket(t, env)

	require.NoError(t, conn.WriteJSON(WSRequest{Action: "chat", Message: "When do you open?"}))

	done := readUntilDone(t, conn)
	assert.Equal(t, sessionID, done.SessionID)
	assert.NotEmpty(t, done.AnswerHash)
	assert.Equal(t, 0, done.RedactionCount)

	history := env.Sessions.History(sessionID)
	require.Len(t, history, 3) // system + user + assistant
	assert.Equal(t, "The clinic opens at eight.", history[2].Content)
}

func TestWebSocketChat_RedactsStreamedReplyBeforePersisting(t *testing.T) {
	// The SSN arrives split across tokens; only the assembled turn can be
	// masked, and only the masked form may persist.
	env := newTestEnv(t, &mockModel{
		StreamTokens: []string{"Your SSN ", "123-45-6789", " is on file."},
	})
	conn, sessionID := dialTestSocket(t, env)

	require.NoError(t, conn.WriteJSON(WSRequest{Action: "chat", Message: "Is my social on record?"}))

	done := readUntilDone(t, conn)
	assert.Equal(t, 1, done.RedactionCount)

	history := env.Sessions.History(sessionID)
	require.Len(t, history, 3)
	assert.NotContains(t, history[2].Content, "123-45-6789")
	assert.Contains(t, history[2].Content, "[REDACTED_SSN]")
}

func TestWebSocketChat_EmptyMessageRejected(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	conn, _ := dialTestSocket(t, env)

	require.NoError(t, conn.WriteJSON(WSRequest{Action: "chat", Message: ""}))

	var event WSEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "error", event.Action)
	assert.Equal(t, "empty message", event.Error)
}
