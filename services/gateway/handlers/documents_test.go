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
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
)

func TestHandleAddDocument_IndexesChunks(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	w := performRequest(router, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "clinic_hours.txt",
		Content: "The clinic is open weekdays from eight to five",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "clinic_hours.txt", response["source"])
	assert.Equal(t, float64(1), response["chunks_indexed"])

	// The chunk landed in the index under a derived ID.
	_, ok := env.Index.Get("clinic_hours.txt_part_1")
	assert.True(t, ok)
}

func TestHandleAddDocument_SplitsLongContent(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("intake procedure details ", 20)
	}

	w := performRequest(router, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "intake_manual.md",
		Content: strings.Join(paragraphs, "\n\n"),
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	response := decodeBody(t, w)
	chunks := response["chunks_indexed"].(float64)
	assert.Greater(t, chunks, float64(1))
	assert.Equal(t, float64(chunks), float64(env.Index.Len()))
}

func TestHandleAddDocument_ReportsPHIFindings(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	w := performRequest(router, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "referral.txt",
		Content: "Referred patient\nSSN 123-45-6789\nfollow up in two weeks",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	response := decodeBody(t, w)
	require.Equal(t, float64(1), response["findings_count"])

	findings := response["phi_findings"].([]interface{})
	finding := findings[0].(map[string]interface{})
	assert.Equal(t, "ssn", finding["kind"])
	assert.Equal(t, float64(2), finding["line_number"])
	// The preview must carry the mask token, never the matched SSN.
	assert.NotContains(t, finding["preview"], "123-45-6789")
}

func TestHandleAddDocument_MissingFields(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	w := performRequest(router, "POST", "/v1/documents",
		datatypes.AddDocumentRequest{Source: "", Content: "text"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, "POST", "/v1/documents",
		datatypes.AddDocumentRequest{Source: "a.txt", Content: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAddDocument_MetricSourceLabelIsBounded(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	before := testutil.ToFloat64(
		env.Metrics.DocumentsIndexedTotal.WithLabelValues(observability.DocSourceAPI))

	// A PHI-bearing document name must land under the fixed "api" label,
	// never as a label value of its own.
	w := performRequest(router, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "john smith visit.note",
		Content: "follow up scheduled for next month",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	after := testutil.ToFloat64(
		env.Metrics.DocumentsIndexedTotal.WithLabelValues(observability.DocSourceAPI))
	assert.Equal(t, before+1, after)
	assert.Equal(t, 1, testutil.CollectAndCount(env.Metrics.DocumentsIndexedTotal))
}

func TestHandleAddDocument_RejectsTraversalSource(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	router := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))

	w := performRequest(router, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "../../etc/passwd",
		Content: "not a document",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.Index.Len())
}

func TestHandleListDocuments_GroupsByParentSource(t *testing.T) {
	env := newTestEnv(t, &mockModel{})
	addRouter := createTestRouter("POST", "/v1/documents", HandleAddDocument(env))
	performRequest(addRouter, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "hours.txt",
		Content: "open weekdays",
	})
	performRequest(addRouter, "POST", "/v1/documents", datatypes.AddDocumentRequest{
		Source:  "parking.txt",
		Content: "lot behind the building",
	})

	router := createTestRouter("GET", "/v1/documents", HandleListDocuments(env))
	w := performRequest(router, "GET", "/v1/documents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	documents := response["documents"].([]interface{})
	assert.ElementsMatch(t, []interface{}{"hours.txt", "parking.txt"}, documents)
}
