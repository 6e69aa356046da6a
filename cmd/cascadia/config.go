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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds CLI configuration loaded from config.yaml, with environment
// fallbacks for any field the file leaves empty.
type Config struct {
	// GatewayURL is the base URL of the running gateway.
	GatewayURL string `yaml:"gateway_url"`

	// APIKey authenticates /v1 requests when the gateway enforces auth.
	APIKey string `yaml:"api_key"`

	// AuditTrail is the path to the local JSONL audit trail file.
	AuditTrail string `yaml:"audit_trail"`

	// GCSBucket receives archived audit trails.
	GCSBucket string `yaml:"gcs_bucket"`

	// GCSKeyPath is the service account key for GCS uploads.
	GCSKeyPath string `yaml:"gcs_key_path"`
}

var config Config

// loadConfig reads configPath when it exists and fills the rest from the
// environment. A missing file is not an error; everything has a default.
func loadConfig(configPath string) error {
	raw, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if config.GatewayURL == "" {
		config.GatewayURL = getEnvString("CASCADIA_GATEWAY_URL", "http://localhost:12280")
	}
	if config.APIKey == "" {
		config.APIKey = os.Getenv("CASCADIA_API_KEY")
	}
	if config.AuditTrail == "" {
		config.AuditTrail = getEnvString("GATEWAY_AUDIT_TRAIL", "cascadia_audit.jsonl")
	}
	if config.GCSBucket == "" {
		config.GCSBucket = os.Getenv("CASCADIA_GCS_BUCKET")
	}
	if config.GCSKeyPath == "" {
		config.GCSKeyPath = os.Getenv("CASCADIA_GCS_KEY_PATH")
	}
	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
