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
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
)

var convTracer = otel.Tracer("cascadia.gateway.datatypes")

// FindOrCreateSessionUUID resolves a gateway session ID to its Weaviate
// object UUID, creating the GatewaySession object on first sight.
func FindOrCreateSessionUUID(ctx context.Context, client *weaviate.Client,
	sessionID string) (string, error) {

	ctx, span := convTracer.Start(ctx, "FindOrCreateSessionUUID")
	defer span.End()

	where := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)

	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	resp, err := client.GraphQL().Get().
		WithClassName(gatewaySessionClass).
		WithWhere(where).
		WithFields(fields...).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query for the archived session: %w", err)
	}

	queryResp, err := ParseGraphQLResponse[SessionQueryResponse](resp)
	if err != nil {
		return "", fmt.Errorf("failed to parse the session query response: %w", err)
	}

	if len(queryResp.Get.GatewaySession) > 0 {
		return queryResp.Get.GatewaySession[0].Additional.ID, nil
	}

	props := map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  time.Now().UnixMilli(),
	}
	result, err := client.Data().Creator().
		WithClassName(gatewaySessionClass).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create the archived session: %w", err)
	}
	if result == nil || result.Object == nil {
		return "", fmt.Errorf("weaviate created a session but returned a nil result")
	}

	slog.Info("archived new gateway session", "session_id", sessionID,
		"weaviate_uuid", result.Object.ID)
	return result.Object.ID.String(), nil
}

// ArchivedTurn is one completed chat turn bound for the durable archive.
// Question and Answer must already be redacted: the archive sits outside
// the process boundary, so nothing unredacted may reach it.
type ArchivedTurn struct {
	SessionID      string `json:"session_id"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	RedactionCount int    `json:"redaction_count"`
}

// Save writes the turn to Weaviate under a deterministic UUID derived from
// its content, so a retried archive write cannot duplicate the turn.
func (t *ArchivedTurn) Save(ctx context.Context, client *weaviate.Client) error {
	if strings.TrimSpace(t.Answer) == "" {
		return nil
	}

	sessionUUID, err := FindOrCreateSessionUUID(ctx, client, t.SessionID)
	if err != nil {
		slog.Error("failed to resolve the parent session, archiving without the graph link",
			"session_id", t.SessionID, "error", err)
	}

	props := map[string]interface{}{
		"session_id":      t.SessionID,
		"question":        t.Question,
		"answer":          t.Answer,
		"redaction_count": t.RedactionCount,
		"timestamp":       time.Now().UnixMilli(),
	}
	if err == nil {
		WithSessionBeacon(props, sessionUUID)
	}

	sum := sha256.Sum256([]byte(t.SessionID + "\x00" + t.Question + "\x00" + t.Answer))
	turnUUID, _ := uuid.FromBytes(sum[:16])

	obj := &models.Object{
		Class:      gatewayConversationClass,
		ID:         strfmt.UUID(turnUUID.String()),
		Properties: props,
	}
	_, err = client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to archive the conversation turn: %w", err)
	}
	return nil
}

// BeaconRef is a Weaviate cross-reference beacon.
type BeaconRef struct {
	Beacon string `json:"beacon"`
}

// WithSessionBeacon links the object to its parent GatewaySession. The
// "localhost" in the beacon URI is Weaviate's cross-reference scheme, not a
// network host.
func WithSessionBeacon(props map[string]interface{}, sessionUUID string) {
	props["inSession"] = []BeaconRef{
		{Beacon: fmt.Sprintf("weaviate://localhost/%s/%s", gatewaySessionClass, sessionUUID)},
	}
}
