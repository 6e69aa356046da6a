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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/browser"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
	"github.com/CascadiaHealth/CascadiaGate/services/llm"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
	"github.com/CascadiaHealth/CascadiaGate/services/websearch"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// metricsOnce guards the process-wide Prometheus registration: InitMetrics
// panics when called twice in the same binary.
var metricsOnce sync.Once

func testMetrics() *observability.GatewayMetrics {
	metricsOnce.Do(func() {
		observability.InitMetrics()
	})
	return observability.DefaultMetrics
}

// mockModel implements llm.Client for handler testing.
type mockModel struct {
	ChatResponse string
	ChatError    error
	StreamTokens []string
	HealthyError error
}

func (m *mockModel) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return m.ChatResponse, m.ChatError
}

func (m *mockModel) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return m.ChatResponse, m.ChatError
}

func (m *mockModel) ChatStream(_ context.Context, _ []datatypes.Message,
	_ llm.GenerationParams, callback llm.StreamCallback) error {
	if m.ChatError != nil {
		return m.ChatError
	}
	for _, token := range m.StreamTokens {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: token}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

func (m *mockModel) Healthy(_ context.Context) error {
	return m.HealthyError
}

func (m *mockModel) Name() string {
	return "mock"
}

var errBackendDown = errors.New("backend down")

// scriptedFilter overrides individual MessageFilter stages for a test;
// unset stages pass through like the no-op filter.
type scriptedFilter struct {
	extensions.NopMessageFilter
	outputErr error
	contextFn func(snippet string) string
}

func (f *scriptedFilter) FilterOutput(ctx context.Context, message string) (*extensions.FilterResult, error) {
	if f.outputErr != nil {
		return nil, f.outputErr
	}
	return f.NopMessageFilter.FilterOutput(ctx, message)
}

func (f *scriptedFilter) FilterContext(ctx context.Context, contextMsg string) (*extensions.FilterResult, error) {
	if f.contextFn != nil {
		return &extensions.FilterResult{Filtered: f.contextFn(contextMsg), WasModified: true}, nil
	}
	return f.NopMessageFilter.FilterContext(ctx, contextMsg)
}

// newTestEnv builds a fully wired Env backed by in-memory components and
// the given model.
func newTestEnv(t *testing.T, model llm.Client) *Env {
	t.Helper()
	engine, err := redaction.NewEngine()
	require.NoError(t, err)

	return NewEnv(Env{
		Redactor: engine,
		Sessions: datatypes.NewSessionStore("You are a helpful clinic assistant."),
		Model:    model,
		Index:    docindex.New(),
		Plans:    browser.NewController(nil),
		Search:   websearch.NewTool(engine, nil),
		Metrics:  testMetrics(),
	})
}

func createTestRouter(method, path string, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	switch method {
	case "POST":
		router.POST(path, handler)
	case "GET":
		router.GET(path, handler)
	}
	return router
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}
