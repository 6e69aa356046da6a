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
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse converts Weaviate's dynamic GraphQL response into a
// typed struct. T's json tags must match the response shape; mismatched
// fields decode to zero values rather than erroring.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into the target type: %w", err)
	}
	return &result, nil
}

// SessionQueryResponse is the shape of a GatewaySession lookup.
type SessionQueryResponse struct {
	Get struct {
		GatewaySession []SessionResult `json:"GatewaySession"`
	} `json:"Get"`
}

// SessionResult is one archived session row.
type SessionResult struct {
	SessionID  string `json:"session_id"`
	Timestamp  int64  `json:"timestamp"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

// ConversationQueryResponse is the shape of a GatewayConversation query.
type ConversationQueryResponse struct {
	Get struct {
		GatewayConversation []ConversationResult `json:"GatewayConversation"`
	} `json:"Get"`
}

// ConversationResult is one archived (redacted) turn.
type ConversationResult struct {
	SessionID      string `json:"session_id"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	RedactionCount int    `json:"redaction_count"`
	Timestamp      int64  `json:"timestamp"`
}
