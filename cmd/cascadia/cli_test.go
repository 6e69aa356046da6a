// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
)

func init() {
	ux.SetPlain(true)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config = Config{}
	t.Setenv("CASCADIA_GATEWAY_URL", "")
	t.Setenv("CASCADIA_API_KEY", "")
	t.Setenv("GATEWAY_AUDIT_TRAIL", "")

	err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:12280", config.GatewayURL)
	assert.Equal(t, "cascadia_audit.jsonl", config.AuditTrail)
	assert.Empty(t, config.APIKey)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	config = Config{}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"gateway_url: http://clinic-gw:9999\napi_key: s3cret\n"), 0o600))

	err := loadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "http://clinic-gw:9999", config.GatewayURL)
	assert.Equal(t, "s3cret", config.APIKey)
}

func TestLoadConfig_MalformedFileFails(t *testing.T) {
	config = Config{}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway_url: [unclosed"), 0o600))

	assert.Error(t, loadConfig(path))
}

func TestGatewayClient_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newGatewayClient(Config{GatewayURL: server.URL, APIKey: "secret"})
	var out map[string]string
	err := client.do(context.Background(), http.MethodGet, "/health", nil, &out)

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "ok", out["status"])
}

func TestGatewayClient_ErrorStatusCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"plan not found"}`))
	}))
	defer server.Close()

	client := newGatewayClient(Config{GatewayURL: server.URL})
	err := client.do(context.Background(), http.MethodPost, "/v1/tools/browser-action/confirm",
		map[string]string{"plan_id": "abc"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan not found")
}

func TestRenderDiff_MarksRedactedLines(t *testing.T) {
	before := "Name on file.\nSSN 123-45-6789 recorded.\n"
	after := "Name on file.\nSSN [REDACTED_SSN] recorded.\n"

	diff := renderDiff("note.txt", before, after)

	assert.Contains(t, diff, "--- note.txt")
	assert.Contains(t, diff, "-SSN 123-45-6789 recorded.")
	assert.Contains(t, diff, "+SSN [REDACTED_SSN] recorded.")
	assert.Contains(t, diff, " Name on file.")
}

func TestCollectIndexable_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visit.soap"), []byte("x"), 0o600))

	files, err := collectIndexable([]string{dir})

	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f, ".pdf")
	}
}

func TestCollectIndexable_ExplicitFileBypassesFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	files, err := collectIndexable([]string{path})

	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"serve", "redact", "index", "plans", "chat", "health", "audit"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
