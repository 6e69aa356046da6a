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
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/pkg/logging"
	"github.com/CascadiaHealth/CascadiaGate/services/audit"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway"
)

// runServe starts the gateway in the foreground, wired exactly like the
// cmd/gateway container entrypoint but with the CLI's config file feeding
// the audit trail location.
func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Service: "gateway",
		LogDir:  os.Getenv("GATEWAY_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := gateway.Config{
		Port:         getEnvInt("GATEWAY_PORT", 12280),
		ModelBackend: getEnvString("MODEL_BACKEND_TYPE", "ollama"),
		WeaviateURL:  os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "stdout"),
		IndexPath:    os.Getenv("GATEWAY_INDEX_PATH"),
		WatchDir:     os.Getenv("GATEWAY_WATCH_DIR"),
		SeedDir:      os.Getenv("GATEWAY_SEED_DIR"),
		SystemPrompt: os.Getenv("GATEWAY_SYSTEM_PROMPT"),
	}

	opts := extensions.DefaultOptions()
	if config.AuditTrail != "" {
		trail, err := audit.NewTrail(config.AuditTrail, audit.SinkFromEnv())
		if err != nil {
			return err
		}
		defer trail.Close()
		opts = opts.WithAudit(trail)
	}

	svc, err := gateway.New(cfg, &opts)
	if err != nil {
		return err
	}
	return svc.Run()
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring non-numeric environment value", "key", key)
	}
	return defaultValue
}
