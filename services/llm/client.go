// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for the model backends the gateway can talk
// to: a local Ollama server, a raw llama.cpp server, or the OpenAI API.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

// GenerationParams carries per-request sampling overrides. Nil fields fall
// back to backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client is the interface every model backend implements.
type Client interface {
	// Generate completes a single prompt without conversation history.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat completes a full conversation and returns the assistant reply.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)

	// ChatStream streams the reply token by token through the callback.
	ChatStream(ctx context.Context, messages []datatypes.Message,
		params GenerationParams, callback StreamCallback) error

	// Healthy reports whether the backend is reachable and serving.
	Healthy(ctx context.Context) error

	// Name identifies the backend for health reports and logs.
	Name() string
}

// NewClientFromEnv builds the backend selected by MODEL_BACKEND. Supported
// values are "ollama" (default), "openai", and "local".
func NewClientFromEnv() (Client, error) {
	backend := os.Getenv("MODEL_BACKEND")
	if backend == "" {
		backend = "ollama"
	}
	switch backend {
	case "ollama":
		return NewOllamaClient()
	case "openai":
		return NewOpenAIClient()
	case "local":
		return NewLocalLlamaCppClient()
	default:
		return nil, fmt.Errorf("unknown MODEL_BACKEND %q (want ollama, openai, or local)", backend)
	}
}
