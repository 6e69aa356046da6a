// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxMessageContentBytes is the largest accepted chat message. Checked in
// bytes, not runes, so oversized payloads are rejected before they cost
// memory.
const MaxMessageContentBytes = 32 * 1024

// gatewayValidate is the shared validator instance, configured in init with
// the custom maxbytes rule.
var gatewayValidate *validator.Validate

func init() {
	gatewayValidate = validator.New()
	_ = gatewayValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
	Message   string `json:"message" validate:"required,maxbytes"`
}

func (r *ChatRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// EnsureDefaults allocates a session UUID when the client did not send one.
func (r *ChatRequest) EnsureDefaults() {
	if r.SessionID == "" {
		r.SessionID = uuid.New().String()
	}
}

// ChatResponse is the POST /v1/chat reply.
type ChatResponse struct {
	SessionID        string `json:"session_id"`
	Answer           string `json:"answer"`
	RedactionCount   int    `json:"redaction_count"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
}

// ClearSessionRequest is the POST /v1/sessions/clear body. An empty
// SessionID clears everything.
type ClearSessionRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
}

func (r *ClearSessionRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// WebSearchRequest is the POST /v1/tools/web-search body.
type WebSearchRequest struct {
	Query      string `json:"query" validate:"required,maxbytes"`
	MaxResults int    `json:"max_results" validate:"gte=0,lte=50"`
}

func (r *WebSearchRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// FileSearchRequest is the POST /v1/tools/file-search body. DateFrom is an
// optional YYYY-MM-DD lower bound applied as a post-filter.
type FileSearchRequest struct {
	Query    string `json:"query" validate:"required,maxbytes"`
	Limit    int    `json:"limit" validate:"gte=0,lte=100"`
	DateFrom string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
}

func (r *FileSearchRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// AddDocumentRequest is the POST /v1/documents body. Source names the
// document; content is chunked and indexed under derived chunk IDs.
type AddDocumentRequest struct {
	Source   string            `json:"source" validate:"required,max=512"`
	Content  string            `json:"content" validate:"required"`
	Metadata map[string]string `json:"metadata"`
}

func (r *AddDocumentRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// ConfirmPlanRequest is the POST /v1/tools/browser-action/confirm body.
type ConfirmPlanRequest struct {
	PlanID   string `json:"plan_id" validate:"required,len=12,hexadecimal"`
	Response string `json:"response" validate:"required,max=64"`
}

func (r *ConfirmPlanRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status    string    `json:"status"`
	Model     string    `json:"model_backend"`
	ModelOK   bool      `json:"model_healthy"`
	Archive   string    `json:"archive_mode"`
	Timestamp time.Time `json:"timestamp"`
}
