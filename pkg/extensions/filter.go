// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrMessageBlocked is returned when a filter rejects a message outright.
// Implementations should wrap this error with the reason.
var ErrMessageBlocked = errors.New("message blocked by filter")

// Detection describes one thing a filter found in a message.
type Detection struct {
	// Type names what was detected: "ssn", "credential", "profanity".
	Type string

	// Action is what the filter did: "redacted", "blocked", "flagged".
	Action string
}

// FilterResult is the outcome of one filter pass.
type FilterResult struct {
	// Filtered is the message after transformation. Not meaningful when
	// WasBlocked is true.
	Filtered string

	// WasModified reports whether any transformation was applied.
	WasModified bool

	// WasBlocked reports whether the message was rejected entirely.
	WasBlocked bool

	// BlockReason explains a block. Empty otherwise.
	BlockReason string

	// Detections lists what the filter found, by kind only.
	Detections []Detection
}

// MessageFilter transforms or rejects messages at the gateway boundary.
// The gateway applies FilterInput before a message reaches the model and
// FilterOutput before a reply reaches the client; FilterContext runs on
// retrieved document snippets injected into prompts.
//
// Implementations must be safe for concurrent use.
type MessageFilter interface {
	FilterInput(ctx context.Context, message string) (*FilterResult, error)
	FilterOutput(ctx context.Context, message string) (*FilterResult, error)
	FilterContext(ctx context.Context, contextMsg string) (*FilterResult, error)
}

// NopMessageFilter passes every message through unchanged. PHI redaction is
// not this filter's job; the gateway's redaction engine always runs.
type NopMessageFilter struct{}

func (f *NopMessageFilter) FilterInput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Filtered: message}, nil
}

func (f *NopMessageFilter) FilterOutput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Filtered: message}, nil
}

func (f *NopMessageFilter) FilterContext(_ context.Context, contextMsg string) (*FilterResult, error) {
	return &FilterResult{Filtered: contextMsg}, nil
}

var _ MessageFilter = (*NopMessageFilter)(nil)
