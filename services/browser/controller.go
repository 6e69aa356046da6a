// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package browser

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PlanStatus is the lifecycle state of an action plan.
type PlanStatus string

const (
	StatusPendingConfirmation PlanStatus = "pending_confirmation"
	StatusReady               PlanStatus = "ready"
	StatusConfirmed           PlanStatus = "confirmed"
	StatusCancelled           PlanStatus = "cancelled"
	StatusExecuted            PlanStatus = "executed"
	StatusExpired             PlanStatus = "expired"
)

// ConfirmationTimeout is how long a pending plan waits for a human response
// before it is treated as expired.
const ConfirmationTimeout = 300 * time.Second

// sensitiveActionTypes force a confirmation hold before execution.
var sensitiveActionTypes = map[string]struct{}{
	"login":             {},
	"submit_form":       {},
	"download":          {},
	"upload":            {},
	"click_submit":      {},
	"enter_password":    {},
	"enter_credentials": {},
}

// IsSensitive reports whether an action type requires user confirmation.
func IsSensitive(actionType string) bool {
	_, ok := sensitiveActionTypes[actionType]
	return ok
}

// Plan is one proposed action sequence moving through the confirmation
// state machine.
type Plan struct {
	PlanID               string     `json:"plan_id"`
	CreatedAt            time.Time  `json:"created_at"`
	Actions              []Action   `json:"actions"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	Status               PlanStatus `json:"status"`
	Description          string     `json:"description"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
}

// Controller owns the pending-plan set and the append-only execution record.
// One mutex serializes every mutation: concurrent confirmations of the same
// plan must not both execute it.
type Controller struct {
	mu       sync.Mutex
	pending  map[string]*Plan
	executed []ExecutedRecord
	executor StepExecutor
	timeout  time.Duration
	now      func() time.Time
}

// NewController builds a controller around the given executor. A nil
// executor falls back to the simulator.
func NewController(executor StepExecutor) *Controller {
	if executor == nil {
		executor = NewSimulatedExecutor()
	}
	return &Controller{
		pending:  make(map[string]*Plan),
		executor: executor,
		timeout:  ConfirmationTimeout,
		now:      time.Now,
	}
}

// CreatePlan builds a plan from already-validated actions. Plans touching a
// sensitive action type require confirmation and are registered in the
// pending set, unless the caller auto-confirms, in which case the plan never
// waits and is never registered.
func (c *Controller) CreatePlan(actions []Action, autoConfirm bool) Plan {
	created := c.now().UTC()
	seed := created.Format(time.RFC3339Nano) + "_" + strconv.Itoa(len(actions))
	sum := md5.Sum([]byte(seed))
	planID := hex.EncodeToString(sum[:])[:12]

	requiresConfirmation := false
	for _, action := range actions {
		if IsSensitive(action.Type) {
			requiresConfirmation = true
			break
		}
	}
	status := StatusReady
	if requiresConfirmation {
		status = StatusPendingConfirmation
	}

	plan := Plan{
		PlanID:               planID,
		CreatedAt:            created,
		Actions:              actions,
		RequiresConfirmation: requiresConfirmation,
		Status:               status,
		Description:          describeActions(actions),
	}
	if requiresConfirmation && !autoConfirm {
		stored := plan
		c.mu.Lock()
		c.pending[planID] = &stored
		c.mu.Unlock()
	}

	slog.Info("action plan created",
		"plan_id", planID,
		"requires_confirmation", requiresConfirmation,
		"actions", len(actions))
	return plan
}

// Confirm resolves a pending plan. CONFIRM, YES, or PROCEED (any case)
// executes it; anything else cancels it. Either way the plan leaves the
// pending set, and a plan older than the confirmation timeout is expired
// instead of executed. The plan is removed before execution starts so a
// racing second confirmation cannot execute it twice.
func (c *Controller) Confirm(ctx context.Context, planID, response string) Response {
	c.mu.Lock()
	plan, ok := c.pending[planID]
	if !ok {
		c.mu.Unlock()
		return Response{
			Success: false,
			Error:   "Plan not found or already executed",
			PlanID:  planID,
		}
	}

	if c.now().Sub(plan.CreatedAt) > c.timeout {
		plan.Status = StatusExpired
		delete(c.pending, planID)
		c.mu.Unlock()
		slog.Info("action plan expired", "plan_id", planID)
		return Response{
			Success: false,
			PlanID:  planID,
			Status:  StatusExpired,
			Error:   "Action plan expired",
		}
	}

	switch strings.ToUpper(response) {
	case "CONFIRM", "YES", "PROCEED":
		confirmed := c.now().UTC()
		plan.Status = StatusConfirmed
		plan.ConfirmedAt = &confirmed
		delete(c.pending, planID)
		c.mu.Unlock()

		result := c.executePlan(ctx, plan)
		plan.Status = StatusExecuted
		return Response{
			Success: true,
			PlanID:  planID,
			Status:  StatusExecuted,
			Result:  &result,
		}
	default:
		plan.Status = StatusCancelled
		delete(c.pending, planID)
		c.mu.Unlock()
		slog.Info("action plan cancelled", "plan_id", planID)
		return Response{
			Success: false,
			PlanID:  planID,
			Status:  StatusCancelled,
			Message: "Action plan cancelled by user",
		}
	}
}

// HandleRequest is the tool entry point: validate, plan, and either execute
// immediately or hold for confirmation.
func (c *Controller) HandleRequest(ctx context.Context, req Request) Response {
	if len(req.Actions) == 0 {
		return Response{Success: false, Error: "No actions provided"}
	}

	validation := ValidateActions(req.Actions)
	if !validation.Valid {
		return Response{Success: false, Error: validation.Error}
	}

	plan := c.CreatePlan(req.Actions, req.AutoConfirm)
	if !plan.RequiresConfirmation || req.AutoConfirm {
		result := c.executePlan(ctx, &plan)
		return Response{
			Success: result.Success,
			PlanID:  plan.PlanID,
			Result:  &result,
		}
	}

	return Response{
		Success:      true,
		Status:       StatusPendingConfirmation,
		PlanID:       plan.PlanID,
		Description:  plan.Description,
		Message:      "Please review the action plan above and respond with 'CONFIRM' to proceed",
		ActionsCount: len(req.Actions),
	}
}

// executePlan runs every step in order, stopping at the first failure. The
// log records selectors and types only, never entered text.
func (c *Controller) executePlan(ctx context.Context, plan *Plan) ExecutionResult {
	result := ExecutionResult{
		ExecutionLog: []ExecutionLogEntry{},
		Screenshots:  []Screenshot{},
	}

	for i, action := range plan.Actions {
		step := i + 1
		err := c.executor.PerformAction(ctx, action)
		entry := ExecutionLogEntry{
			Step:      step,
			Action:    action.Type,
			Target:    action.Target,
			Timestamp: c.now().UTC(),
			Status:    "completed",
		}
		if err != nil {
			entry.Status = "failed"
			result.ExecutionLog = append(result.ExecutionLog, entry)
			result.Error = fmt.Sprintf("step %d (%s) failed", step, action.Type)
			slog.Warn("action step failed",
				"plan_id", plan.PlanID,
				"step", step,
				"action", action.Type,
				"error", err)
			return result
		}

		slog.Info("executed action", "action", action.Type, "step", step)
		result.ExecutionLog = append(result.ExecutionLog, entry)

		if action.Type == "screenshot" {
			result.Screenshots = append(result.Screenshots, Screenshot{
				Step:      step,
				Filename:  fmt.Sprintf("screenshot_%s_%d.png", plan.PlanID, step),
				Timestamp: c.now().UTC(),
			})
		}
	}

	result.Success = true
	result.DurationMs = len(plan.Actions) * 100 // simulated

	c.mu.Lock()
	c.executed = append(c.executed, ExecutedRecord{
		PlanID:      plan.PlanID,
		ExecutedAt:  c.now().UTC(),
		ActionCount: len(plan.Actions),
	})
	c.mu.Unlock()
	return result
}

// SweepExpired removes every pending plan older than the confirmation
// timeout and returns how many were removed. The surrounding scheduler calls
// this periodically; Confirm also expires lazily on lookup.
func (c *Controller) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, plan := range c.pending {
		if now.Sub(plan.CreatedAt) > c.timeout {
			plan.Status = StatusExpired
			delete(c.pending, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("expired action plans removed", "count", removed)
	}
	return removed
}

// PendingPlans returns a snapshot of plans awaiting confirmation, oldest
// first.
func (c *Controller) PendingPlans() []Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	plans := make([]Plan, 0, len(c.pending))
	for _, plan := range c.pending {
		plans = append(plans, *plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})
	return plans
}

// PendingCount reports how many plans await confirmation.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ExecutedRecords returns a copy of the append-only execution record.
func (c *Controller) ExecutedRecords() []ExecutedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ExecutedRecord, len(c.executed))
	copy(out, c.executed)
	return out
}
