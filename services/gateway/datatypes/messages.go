// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the request, response, and session types for
// the gateway service.
package datatypes

// Message roles as sent to model backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// maxLoggedChars bounds how much of any message content may appear in a log
// record. Messages can carry PHI; logs must not.
const maxLoggedChars = 100

// SanitizeForLogging truncates content for log output. Full message bodies
// never belong in logs.
func SanitizeForLogging(content string) string {
	if len(content) <= maxLoggedChars {
		return content
	}
	return content[:maxLoggedChars] + "..."
}
