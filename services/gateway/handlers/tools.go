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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/browser"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
	"github.com/CascadiaHealth/CascadiaGate/services/websearch"
)

// HandleWebSearch runs a web query through the redaction boundary. The
// search tool validates and redacts the query itself; the handler records
// the counts and maps a rejected query to a 400.
func HandleWebSearch(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleWebSearch")
		defer span.End()

		var req datatypes.WebSearchRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			env.Metrics.RecordToolRequest("web_search", false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := env.Search.Search(ctx, req.Query, req.MaxResults)
		if err != nil {
			span.RecordError(err)
			env.Metrics.RecordToolRequest("web_search", false)
			if errors.Is(err, websearch.ErrInvalidQuery) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query rejected: restricted terms"})
				return
			}
			span.SetStatus(codes.Error, "web search failed")
			slog.Error("web search failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "search provider unavailable"})
			return
		}

		env.Metrics.RecordToolRequest("web_search", true)
		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "search.web",
			UserID:       userID(c),
			Action:       "search",
			ResourceType: "web",
			Outcome:      "success",
			Metadata: map[string]any{
				"result_count":    resp.TotalResults,
				"redaction_count": resp.Metadata.RedactionCount,
			},
		})
		c.JSON(http.StatusOK, resp)
	}
}

// HandleFileSearch queries the local document index. The query is redacted
// before it touches the index so PHI never lands in the posting lists or
// the logs.
func HandleFileSearch(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleFileSearch")
		defer span.End()

		var req datatypes.FileSearchRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			env.Metrics.RecordToolRequest("file_search", false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		redacted := env.Redactor.Redact(req.Query)
		if redacted.Redacted() {
			env.Metrics.RecordRedactions(redactionKindCounts(redacted))
		}

		results := env.Index.Search(redacted.Text, req.Limit)
		filtered := false
		if req.DateFrom != "" {
			results = docindex.FilterResults(results, docindex.DateFromFilter(req.DateFrom))
			filtered = true
		}

		// Snippets leave the index boundary here, so the context filter gets
		// a pass at them. A rejected snippet keeps its hit but loses the
		// excerpt.
		for i := range results {
			ctxFiltered, err := env.Filter.FilterContext(ctx, results[i].Snippet)
			if err != nil {
				results[i].Snippet = ""
				continue
			}
			results[i].Snippet = ctxFiltered.Filtered
		}

		env.Metrics.RecordToolRequest("file_search", true)
		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "document.searched",
			UserID:       userID(c),
			Action:       "search",
			ResourceType: "document",
			Outcome:      "success",
			Metadata: map[string]any{
				"result_count":    len(results),
				"redaction_count": len(redacted.Matches),
			},
		})
		c.JSON(http.StatusOK, docindex.BuildResponse(redacted.Text, results, filtered))
	}
}

// HandleBrowserAction proposes a browser action plan. Sensitive plans come
// back pending confirmation; everything else executes immediately.
func HandleBrowserAction(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleBrowserAction")
		defer span.End()

		var req browser.Request
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp := env.Plans.HandleRequest(ctx, req)
		if !resp.Success && resp.Status == "" {
			env.Metrics.RecordToolRequest("browser_action", false)
			c.JSON(http.StatusBadRequest, resp)
			return
		}

		env.Metrics.RecordToolRequest("browser_action", true)
		if resp.Status == browser.StatusPendingConfirmation {
			env.Metrics.RecordPlanCreated(true)
		} else {
			env.Metrics.RecordPlanCreated(false)
		}
		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "plan.created",
			UserID:       userID(c),
			Action:       "propose",
			ResourceType: "plan",
			ResourceID:   resp.PlanID,
			Outcome:      string(resp.Status),
			Metadata:     map[string]any{"action_count": len(req.Actions)},
		})
		c.JSON(http.StatusOK, resp)
	}
}

// HandleConfirmPlan resolves a pending action plan. Any response other than
// an affirmative cancels it.
func HandleConfirmPlan(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleConfirmPlan")
		defer span.End()

		var req datatypes.ConfirmPlanRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := env.Plans.Confirm(ctx, req.PlanID, req.Response)

		outcome := confirmationOutcome(resp)
		env.Metrics.RecordConfirmation(outcome)
		env.recordAudit(ctx, extensions.AuditEvent{
			EventType:    "plan." + string(outcome),
			UserID:       userID(c),
			Action:       "confirm",
			ResourceType: "plan",
			ResourceID:   req.PlanID,
			Outcome:      string(outcome),
		})

		status := http.StatusOK
		if outcome == observability.OutcomeNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, resp)
	}
}

// HandleListPlans reports pending plans and the executed-plan audit trail.
func HandleListPlans(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pending":  env.Plans.PendingPlans(),
			"executed": env.Plans.ExecutedRecords(),
		})
	}
}

// confirmationOutcome maps a controller response onto a metrics outcome.
func confirmationOutcome(resp browser.Response) observability.Outcome {
	switch resp.Status {
	case browser.StatusExecuted:
		return observability.OutcomeConfirmed
	case browser.StatusCancelled:
		return observability.OutcomeCancelled
	case browser.StatusExpired:
		return observability.OutcomeExpired
	default:
		return observability.OutcomeNotFound
	}
}
