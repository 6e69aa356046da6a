// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the pluggable seams of the gateway.
//
// CascadiaGate runs complete on its own: requests are accepted from any
// local caller, audit events go to the built-in trail, and message
// filtering is handled by the redaction engine. Deployments that need
// identity providers, SIEM audit sinks, or additional content policies
// supply their own implementations of these interfaces and inject them
// through ServiceOptions.
//
// The package is organized by concern:
//
//   - auth.go: Authentication and authorization (AuthProvider, AuthzProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//   - filter.go: Message transformation and PHI filtering (MessageFilter)
//
// All implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups the extension points handed to the gateway at
// construction. Nil fields fall back to the built-in defaults.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens on incoming requests.
	// Default: NopAuthProvider (every caller becomes "local-user").
	AuthProvider AuthProvider

	// AuthzProvider checks per-action permissions.
	// Default: NopAuthzProvider (everything allowed).
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (events discarded).
	AuditLogger AuditLogger

	// MessageFilter transforms messages before and after the model.
	// Default: NopMessageFilter (pass-through). The gateway itself always
	// runs PHI redaction regardless of this filter.
	MessageFilter MessageFilter
}

// DefaultOptions returns ServiceOptions with the built-in defaults, the
// configuration a standalone local deployment runs with.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
		MessageFilter: &NopMessageFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given MessageFilter.
func (opts ServiceOptions) WithFilter(filter MessageFilter) ServiceOptions {
	opts.MessageFilter = filter
	return opts
}
