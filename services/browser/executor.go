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
	"time"
)

// StepExecutor performs one browser action. The controller owns sequencing,
// logging, and artifact bookkeeping; an executor only has to make the single
// step happen. A non-nil error aborts the remaining steps of the plan.
type StepExecutor interface {
	PerformAction(ctx context.Context, action Action) error
}

// SimulatedExecutor is the default executor. It performs nothing and never
// fails; Delay mimics per-step driver latency.
type SimulatedExecutor struct {
	Delay time.Duration
}

// NewSimulatedExecutor returns a simulator with the standard 100ms per-step
// delay.
func NewSimulatedExecutor() *SimulatedExecutor {
	return &SimulatedExecutor{Delay: 100 * time.Millisecond}
}

func (e *SimulatedExecutor) PerformAction(ctx context.Context, _ Action) error {
	if e.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.Delay):
		return nil
	}
}
