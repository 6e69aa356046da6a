// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package browser validates, plans, and simulates browser automation on
// behalf of the model. Nothing here drives a real browser: execution happens
// behind the StepExecutor contract so a driver can be plugged in without
// touching the confirmation state machine.
package browser

import (
	"time"
)

// Action is one proposed browser step. Fields beyond Type are type-specific;
// an Action is immutable once it is part of a plan.
type Action struct {
	Type    string  `json:"type"`
	Target  string  `json:"target,omitempty"`
	URL     string  `json:"url,omitempty"`
	Text    string  `json:"text,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Site    string  `json:"site,omitempty"`
	File    string  `json:"file,omitempty"`
}

// Request is the tool-invocation payload. AutoConfirm skips the confirmation
// hold for callers that have already obtained consent out of band.
type Request struct {
	Actions     []Action `json:"actions"`
	AutoConfirm bool     `json:"auto_confirm"`
}

// Response is the single wire shape for every plan outcome: pending
// confirmation, executed, cancelled, expired, or rejected. Absent fields are
// omitted from the JSON encoding.
type Response struct {
	Success      bool             `json:"success"`
	Error        string           `json:"error,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Status       PlanStatus       `json:"status,omitempty"`
	PlanID       string           `json:"plan_id,omitempty"`
	Description  string           `json:"description,omitempty"`
	Message      string           `json:"message,omitempty"`
	ActionsCount int              `json:"actions_count,omitempty"`
	Result       *ExecutionResult `json:"result,omitempty"`
}

// ExecutionLogEntry records one executed step. Target selectors are recorded;
// entered text never is.
type ExecutionLogEntry struct {
	Step      int       `json:"step"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Screenshot is a placeholder artifact reference emitted for screenshot
// steps. A real driver would replace Filename with a captured file.
type Screenshot struct {
	Step      int       `json:"step"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionResult is the outcome of running one plan. On failure the log
// holds every step up to and including the one that failed.
type ExecutionResult struct {
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	ExecutionLog []ExecutionLogEntry `json:"execution_log"`
	Screenshots  []Screenshot        `json:"screenshots"`
	DurationMs   int                 `json:"duration_ms"`
}

// ExecutedRecord is the append-only audit record of a completed plan. It
// carries counts and identifiers only.
type ExecutedRecord struct {
	PlanID      string    `json:"plan_id"`
	ExecutedAt  time.Time `json:"executed_at"`
	ActionCount int       `json:"action_count"`
}
