// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that become
// index keys, file names, or parts of storage paths. Using these validators
// prevents injection attacks (path traversal, key collisions, control bytes
// in persisted records).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sourcePattern matches valid document source names.
// Allows: letters, digits, dots (visit.note), underscores, hyphens, spaces.
// Max length: 120 characters, must start with a letter or digit.
var sourcePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ \-]{0,119}$`)

// ValidateSource validates a document source name before it is used as an
// index key or written into the audit trail.
//
// Valid sources:
//   - 1-120 characters
//   - letters, digits, dots, underscores, hyphens, spaces
//   - no path separators and no ".." sequences
//
// Returns an error if the source is invalid.
//
// Example:
//
//	if err := validation.ValidateSource(req.Source); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateSource(source string) error {
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if strings.ContainsAny(source, `/\`) {
		return fmt.Errorf("source %q must not contain path separators", source)
	}
	if strings.Contains(source, "..") {
		return fmt.Errorf("source %q must not contain traversal sequences", source)
	}
	if !sourcePattern.MatchString(source) {
		return fmt.Errorf("invalid source format: %q (must be 1-120 chars: letters, digits, dots, underscores, hyphens, spaces)", source)
	}
	return nil
}

// ValidateSources validates multiple source names.
// Returns an error listing all invalid sources if any fail validation.
func ValidateSources(sources []string) error {
	var invalid []string
	for _, s := range sources {
		if err := ValidateSource(s); err != nil {
			invalid = append(invalid, s)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid sources: %v", invalid)
	}
	return nil
}

// SanitizeSource normalizes and validates a source name.
// Returns the trimmed source if valid, or an error if invalid.
//
// Use this when accepting source names from request bodies:
//
//	source, err := validation.SanitizeSource(req.Source)
//	if err != nil {
//	    return err
//	}
//	// source is trimmed and validated
func SanitizeSource(source string) (string, error) {
	normalized := strings.TrimSpace(source)
	if err := ValidateSource(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
