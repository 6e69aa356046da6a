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
	"context"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Archive class names. These deliberately do not collide with any generic
// "Session"/"Conversation" classes another tenant of the same Weaviate
// instance might own.
const (
	gatewaySessionClass      = "GatewaySession"
	gatewayConversationClass = "GatewayConversation"
)

// GetGatewaySessionSchema describes the archived-session class.
func GetGatewaySessionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:               gatewaySessionClass,
		Description:         "Metadata for a single gateway chat session.",
		Vectorizer:          "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{IndexTimestamps: true},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the conversation session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the session was first archived.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// GetGatewayConversationSchema describes the archived-turn class. Question
// and answer hold redacted text only.
func GetGatewayConversationSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:               gatewayConversationClass,
		Description:         "One redacted question/answer turn of a gateway chat session.",
		Vectorizer:          "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{IndexTimestamps: true},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the conversation session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The user's query, after PHI redaction.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The model's response, after PHI redaction.",
				Tokenization: "word",
			},
			{
				Name:            "redaction_count",
				DataType:        []string{"int"},
				Description:     "How many PHI items were masked in this turn.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the turn completed.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "inSession",
				DataType:        []string{gatewaySessionClass},
				Description:     "A direct graph link to the parent session object.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureArchiveSchema creates the archive classes when missing. Existing
// classes are left untouched.
func EnsureArchiveSchema(client *weaviate.Client) {
	requiredClasses := []*models.Class{
		GetGatewaySessionSchema(),
		GetGatewayConversationSchema(),
	}

	for _, class := range requiredClasses {
		exists, err := client.Schema().ClassExistenceChecker().
			WithClassName(class.Class).
			Do(context.Background())
		if err != nil {
			slog.Warn("failed to check for an archive class", "class", class.Class, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := client.Schema().ClassCreator().
			WithClass(class).
			Do(context.Background()); err != nil {
			slog.Warn("failed to create an archive class", "class", class.Class, "error", err)
			continue
		}
		slog.Info("created archive class", "class", class.Class)
	}
}
