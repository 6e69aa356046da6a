// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig controls the per-client token buckets.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64

	// Burst is the bucket size per client IP.
	Burst int

	// IdleEviction drops a client's bucket after this much inactivity.
	IdleEviction time.Duration
}

// DefaultRateLimitConfig returns limits sized for a small clinic: generous
// for interactive chat, tight enough to stop a runaway script.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             30,
		IdleEviction:      10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiters holds one token bucket per client IP.
type rateLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig
	now     func() time.Time
}

func newRateLimiters(cfg RateLimitConfig) *rateLimiters {
	return &rateLimiters{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (r *rateLimiters) get(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	client, ok := r.clients[ip]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst),
		}
		r.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter
}

// evictIdle drops buckets that have not been used recently so the map does
// not grow without bound.
func (r *rateLimiters) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.cfg.IdleEviction)
	for ip, client := range r.clients {
		if client.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
	}
}

// RateLimitMiddleware creates a Gin middleware enforcing per-client-IP
// request limits. Requests over the limit get 429 with a Retry-After hint.
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	limiters := newRateLimiters(cfg)

	go func() {
		ticker := time.NewTicker(cfg.IdleEviction)
		defer ticker.Stop()
		for range ticker.C {
			limiters.evictIdle()
		}
	}()

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
