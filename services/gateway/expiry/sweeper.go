// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package expiry runs the background sweep that removes action plans whose
// confirmation window has lapsed. Plans also expire lazily when a late
// confirmation arrives; the sweeper bounds how long an abandoned plan may
// sit in memory.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PlanSweeper is the part of the action plan controller the sweeper needs.
type PlanSweeper interface {
	// SweepExpired removes every pending plan past its confirmation window
	// and reports how many were dropped.
	SweepExpired() int
}

// SweeperConfig holds configuration for the background sweep.
type SweeperConfig struct {
	// Interval is how often the sweep runs. Default: 1 minute, a fraction
	// of the 5 minute confirmation window.
	Interval time.Duration
}

// DefaultSweeperConfig returns the production sweep interval.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: 1 * time.Minute}
}

// OnExpired is called after each sweep with the number of plans removed.
// Used to feed metrics and the audit trail. May be nil.
type OnExpired func(count int)

// Sweeper periodically expires abandoned action plans. Uses the
// ticker + done channel pattern for graceful shutdown.
type Sweeper struct {
	plans     PlanSweeper
	config    SweeperConfig
	onExpired OnExpired
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewSweeper creates a sweeper. onExpired may be nil.
func NewSweeper(plans PlanSweeper, config SweeperConfig, onExpired OnExpired) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	return &Sweeper{
		plans:     plans,
		config:    config,
		onExpired: onExpired,
		done:      make(chan struct{}),
	}
}

// Start begins the background sweep goroutine. Returns an error if the
// sweeper is already running. The goroutine stops when Stop is called or
// the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("Plan expiry sweeper starting", "interval", s.config.Interval.String())
	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep goroutine to exit. Safe to call more than once.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	slog.Info("Plan expiry sweeper stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs one sweep immediately, outside the schedule.
func (s *Sweeper) RunNow() int {
	return s.sweep()
}

func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Plan expiry sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Plan expiry sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() int {
	expired := s.plans.SweepExpired()
	if expired > 0 {
		slog.Info("Expired unconfirmed action plans", "count", expired)
	}
	if s.onExpired != nil {
		s.onExpired(expired)
	}
	return expired
}
