// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

// StreamEventType tags what kind of stream event the callback is receiving.
type StreamEventType int

const (
	// StreamEventToken is a fragment of the assistant's visible reply.
	StreamEventToken StreamEventType = iota
	// StreamEventThinking is a fragment of the model's reasoning trace.
	StreamEventThinking
	// StreamEventError carries a backend error surfaced mid-stream.
	StreamEventError
	// StreamEventDone marks the end of the stream.
	StreamEventDone
)

// StreamEvent is one unit of streamed output.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StreamCallback receives stream events in order. Returning an error aborts
// the stream.
type StreamCallback func(event StreamEvent) error

// StreamConfig bounds what a stream may emit. Zero-valued limits are
// unlimited.
type StreamConfig struct {
	// RedactThinking drops reasoning-trace tokens entirely. Thinking output
	// is model-internal and must never reach clients in regulated
	// deployments.
	RedactThinking bool
	// MaxThinkingLength caps the total reasoning characters emitted.
	MaxThinkingLength int
	// MaxResponseLength caps the total reply characters emitted.
	MaxResponseLength int
	// RateLimitPerSecond throttles callback invocations when positive.
	RateLimitPerSecond int
}

// DefaultStreamConfig returns the production stream limits.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		RedactThinking:     false,
		MaxThinkingLength:  0,
		MaxResponseLength:  100 * 1024,
		RateLimitPerSecond: 0,
	}
}

// ollamaStreamChunk is one NDJSON line of an Ollama streaming response.
type ollamaStreamChunk struct {
	Message       datatypes.Message `json:"message"`
	Thinking      string            `json:"thinking,omitempty"`
	Done          bool              `json:"done"`
	DoneReason    string            `json:"done_reason,omitempty"`
	TotalDuration int64             `json:"total_duration,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// DefaultStreamProcessor applies StreamConfig limits to a chunk stream and
// forwards the surviving events to a callback. Not safe for concurrent use;
// each stream gets its own processor.
type DefaultStreamProcessor struct {
	cfg            StreamConfig
	limiter        *rate.Limiter
	tokenCount     int
	responseLength int
	thinkingLength int
}

// NewDefaultStreamProcessor builds a processor for one stream. limiter may
// be nil; when cfg.RateLimitPerSecond is positive and limiter is nil, one is
// created.
func NewDefaultStreamProcessor(cfg StreamConfig, limiter *rate.Limiter) *DefaultStreamProcessor {
	if limiter == nil && cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond)
	}
	return &DefaultStreamProcessor{cfg: cfg, limiter: limiter}
}

// ProcessChunk applies limits to one chunk and invokes the callback for each
// event it produces. It reports whether the stream has finished.
func (p *DefaultStreamProcessor) ProcessChunk(ctx context.Context,
	chunk *ollamaStreamChunk, callback StreamCallback) (bool, error) {

	if chunk.Error != "" {
		event := StreamEvent{Type: StreamEventError, Error: chunk.Error}
		if cbErr := callback(event); cbErr != nil {
			return true, fmt.Errorf("stream callback failed: %w", cbErr)
		}
		return true, fmt.Errorf("backend stream error: %s", chunk.Error)
	}

	if chunk.Thinking != "" && !p.cfg.RedactThinking {
		content := chunk.Thinking
		if p.cfg.MaxThinkingLength > 0 {
			remaining := p.cfg.MaxThinkingLength - p.thinkingLength
			if remaining <= 0 {
				content = ""
			} else if len(content) > remaining {
				content = content[:remaining]
			}
		}
		if content != "" {
			p.thinkingLength += len(content)
			if err := p.emit(ctx, StreamEvent{Type: StreamEventThinking, Content: content}, callback); err != nil {
				return false, err
			}
		}
	}

	if chunk.Message.Content != "" {
		content := chunk.Message.Content
		if p.cfg.MaxResponseLength > 0 {
			remaining := p.cfg.MaxResponseLength - p.responseLength
			if remaining <= 0 {
				content = ""
			} else if len(content) > remaining {
				content = content[:remaining]
			}
		}
		if content != "" {
			p.tokenCount++
			p.responseLength += len(content)
			if err := p.emit(ctx, StreamEvent{Type: StreamEventToken, Content: content}, callback); err != nil {
				return false, err
			}
		}
	}

	return chunk.Done, nil
}

func (p *DefaultStreamProcessor) emit(ctx context.Context, event StreamEvent,
	callback StreamCallback) error {

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("stream rate limit wait: %w", err)
		}
	}
	if err := callback(event); err != nil {
		return fmt.Errorf("stream callback failed: %w", err)
	}
	return nil
}

// GetTokenCount reports how many content tokens have been emitted.
func (p *DefaultStreamProcessor) GetTokenCount() int { return p.tokenCount }

// GetResponseLength reports how many reply characters have been emitted.
func (p *DefaultStreamProcessor) GetResponseLength() int { return p.responseLength }
