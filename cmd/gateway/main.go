// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gateway starts the CascadiaGate HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GATEWAY_PORT: HTTP server port (default: 12280)
//   - MODEL_BACKEND_TYPE: model provider - ollama, openai, local (default: ollama)
//   - WEAVIATE_SERVICE_URL: Weaviate conversation archive URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: cascadia-otel-collector:4317)
//   - GATEWAY_INDEX_PATH: BadgerDB directory for the document index (optional; in memory when unset)
//   - GATEWAY_WATCH_DIR: drop directory for automatic document ingestion (optional)
//   - GATEWAY_SEED_DIR: directory of reference documents indexed whole at startup (optional)
//   - GATEWAY_SYSTEM_PROMPT: override for the session system prompt (optional)
//   - GATEWAY_LOG_DIR: directory for daily JSON log files (optional; stderr only when unset)
//   - GATEWAY_AUDIT_TRAIL: path to the JSONL audit trail file (optional; no trail when unset)
//   - CASCADIA_AUDIT_SINK: "influxdb" mirrors audit events to InfluxDB (see services/audit)
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	./gateway
//
//	# Or via container
//	podman-compose up gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/pkg/logging"
	"github.com/CascadiaHealth/CascadiaGate/services/audit"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Service: "gateway",
		JSON:    true,
		LogDir:  os.Getenv("GATEWAY_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := gateway.Config{
		Port:         getEnvInt("GATEWAY_PORT", 12280),
		ModelBackend: getEnvString("MODEL_BACKEND_TYPE", "ollama"),
		WeaviateURL:  os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "cascadia-otel-collector:4317"),
		IndexPath:    os.Getenv("GATEWAY_INDEX_PATH"),
		WatchDir:     os.Getenv("GATEWAY_WATCH_DIR"),
		SeedDir:      os.Getenv("GATEWAY_SEED_DIR"),
		SystemPrompt: os.Getenv("GATEWAY_SYSTEM_PROMPT"),
	}

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"model_backend", cfg.ModelBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	// Enterprise builds will pass custom ServiceOptions here.
	opts := extensions.DefaultOptions()
	if trailPath := os.Getenv("GATEWAY_AUDIT_TRAIL"); trailPath != "" {
		trail, err := audit.NewTrail(trailPath, audit.SinkFromEnv())
		if err != nil {
			log.Fatalf("Failed to open the audit trail: %v", err)
		}
		defer trail.Close()
		opts = opts.WithAudit(trail)
	}

	svc, err := gateway.New(cfg, &opts)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
