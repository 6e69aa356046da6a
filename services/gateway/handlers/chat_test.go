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
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

func TestHandleChat_Success(t *testing.T) {
	env := newTestEnv(t, &mockModel{ChatResponse: "Hello! How can I help you?"})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "Hello"})

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "Hello! How can I help you?", response["answer"])
	assert.Equal(t, float64(0), response["redaction_count"])

	// The server allocated a session for us.
	sessionID, ok := response["session_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err)
}

func TestHandleChat_RedactsBeforeModel(t *testing.T) {
	env := newTestEnv(t, &mockModel{ChatResponse: "Noted."})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "My SSN is 123-45-6789, please update my chart."})

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(1), response["redaction_count"])

	// The session history must hold the masked text, never the raw SSN.
	sessionID := response["session_id"].(string)
	history := env.Sessions.History(sessionID)
	require.Len(t, history, 3) // system + user + assistant
	assert.NotContains(t, history[1].Content, "123-45-6789")
	assert.Contains(t, history[1].Content, "[REDACTED_SSN]")
}

func TestHandleChat_RedactsModelReplyBeforePersisting(t *testing.T) {
	// A model that echoes PHI must not get it into the session store, the
	// archive, or the response body.
	env := newTestEnv(t, &mockModel{
		ChatResponse: "Your SSN 123-45-6789 is already on file.",
	})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "Do you have my social on record?"})

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)

	answer := response["answer"].(string)
	assert.NotContains(t, answer, "123-45-6789")
	assert.Contains(t, answer, "[REDACTED_SSN]")
	assert.Equal(t, float64(1), response["redaction_count"])

	sessionID := response["session_id"].(string)
	history := env.Sessions.History(sessionID)
	require.Len(t, history, 3) // system + user + assistant
	assert.NotContains(t, history[2].Content, "123-45-6789")
	assert.Contains(t, history[2].Content, "[REDACTED_SSN]")
}

func TestHandleChat_CountsRedactionsOnBothSidesOfTheTurn(t *testing.T) {
	env := newTestEnv(t, &mockModel{
		ChatResponse: "Confirmed, 123-45-6789 matches our records.",
	})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "My SSN is 123-45-6789."})

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(2), response["redaction_count"])
}

func TestHandleChat_OutputFilterWithholdsReply(t *testing.T) {
	env := newTestEnv(t, &mockModel{ChatResponse: "something the policy forbids"})
	env.Filter = &scriptedFilter{outputErr: errors.New("policy violation")}
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "hello"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "withheld")
}

func TestHandleChat_ReusesSession(t *testing.T) {
	env := newTestEnv(t, &mockModel{ChatResponse: "reply"})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	first := decodeBody(t, performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "first"}))
	sessionID := first["session_id"].(string)

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{SessionID: sessionID, Message: "second"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sessionID, decodeBody(t, w)["session_id"])

	// system + two user/assistant pairs
	assert.Len(t, env.Sessions.History(sessionID), 5)
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{Message: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_MalformedSessionID(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{SessionID: "not-a-uuid", Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_OversizedMessage(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: strings.Repeat("a", datatypes.MaxMessageContentBytes+1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_ModelFailure(t *testing.T) {
	env := newTestEnv(t, &mockModel{ChatError: errBackendDown})
	router := createTestRouter("POST", "/v1/chat", HandleChat(env))

	w := performRequest(router, "POST", "/v1/chat",
		datatypes.ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleHealth_Healthy(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("GET", "/health", HandleHealth(env))

	w := performRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeBody(t, w)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "mock", response["model_backend"])
	assert.Equal(t, true, response["model_healthy"])
	assert.Equal(t, "disabled", response["archive_mode"])
}

func TestHandleHealth_DegradedWhenModelUnreachable(t *testing.T) {
	env := newTestEnv(t, &mockModel{HealthyError: errBackendDown})
	router := createTestRouter("GET", "/health", HandleHealth(env))

	w := performRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeBody(t, w)
	assert.Equal(t, "degraded", response["status"])
	assert.Equal(t, false, response["model_healthy"])
}
