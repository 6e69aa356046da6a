// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/CascadiaHealth/CascadiaGate/pkg/validation"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
	"github.com/CascadiaHealth/CascadiaGate/services/ingest"
)

// HandleAddDocument chunks and indexes a document. The reply reports the
// PHI scan findings so the caller knows what the document carried; the
// findings hold pattern IDs and line numbers, never matched text.
func HandleAddDocument(env *Env) gin.HandlerFunc {
	pipeline := ingest.NewPipeline(env.Index, env.Redactor, env.Audit)
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleAddDocument")
		defer span.End()

		var req datatypes.AddDocumentRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		source, err := validation.SanitizeSource(req.Source)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := pipeline.IngestContent(ctx, source, req.Content, req.Metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingestion failed")
			slog.Error("document ingestion failed", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to index document"})
			return
		}

		env.Metrics.RecordDocumentIndexed(observability.DocSourceAPI)
		c.JSON(http.StatusCreated, gin.H{
			"status":         "success",
			"source":         result.Source,
			"chunks_indexed": result.ChunksIndexed,
			"phi_findings":   result.Findings,
			"findings_count": len(result.Findings),
		})
	}
}

// HandleListDocuments reports the distinct parent sources in the index.
func HandleListDocuments(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources := make(map[string]struct{})
		for _, id := range env.Index.IDs() {
			if doc, ok := env.Index.Get(id); ok {
				if parent, ok := doc.Metadata["parent_source"]; ok {
					sources[parent] = struct{}{}
					continue
				}
				sources[doc.ID] = struct{}{}
			}
		}

		docList := make([]string, 0, len(sources))
		for source := range sources {
			docList = append(docList, source)
		}
		c.JSON(http.StatusOK, gin.H{
			"documents":      docList,
			"indexed_chunks": env.Index.Len(),
		})
	}
}
