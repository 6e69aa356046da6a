// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Custom providers should wrap this error so middleware can classify it.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity returned after successful authentication.
type AuthInfo struct {
	// UserID uniquely identifies the user. Never empty.
	UserID string

	// Email may be empty when the provider does not supply one.
	Email string

	// Roles lists role memberships for authorization decisions.
	// Common roles: "admin", "clinician", "auditor".
	Roles []string

	// Metadata holds additional provider-specific claims.
	Metadata map[string]any
}

// HasRole reports whether the user holds the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens and returns user identity.
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity, or an
	// error wrapping ErrUnauthorized when the token is rejected.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes one (subject, action, resource) permission check.
type AuthzRequest struct {
	// User is the authenticated caller, from AuthProvider.Validate.
	User *AuthInfo

	// Action is the operation attempted: "read", "execute", "delete".
	Action string

	// ResourceType is the resource category: "session", "document", "plan".
	ResourceType string

	// ResourceID names a specific instance; empty checks the type at large.
	ResourceID string
}

// AuthzProvider decides whether a user may perform an action.
// Implementations must be safe for concurrent use.
type AuthzProvider interface {
	// Authorize returns nil when permitted and an error wrapping
	// ErrUnauthorized when denied.
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider authenticates every request as a local admin. This is the
// default for single-user deployments with no identity infrastructure.
type NopAuthProvider struct{}

// Validate ignores the token and returns the local user.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider allows every action.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// APIKeyAuthProvider validates requests against a static set of API keys.
// Suitable for small clinic deployments where keys are provisioned out of
// band; anything larger should plug in a real identity provider.
type APIKeyAuthProvider struct {
	keys map[string]AuthInfo
}

// NewAPIKeyAuthProvider builds a provider from a key-to-identity map.
func NewAPIKeyAuthProvider(keys map[string]AuthInfo) *APIKeyAuthProvider {
	owned := make(map[string]AuthInfo, len(keys))
	for k, v := range keys {
		owned[k] = v
	}
	return &APIKeyAuthProvider{keys: owned}
}

// Validate matches the token against the configured keys using a
// constant-time comparison.
func (p *APIKeyAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing API key: %w", ErrUnauthorized)
	}
	for key, info := range p.keys {
		if len(key) == len(token) &&
			subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			out := info
			return &out, nil
		}
	}
	return nil, fmt.Errorf("unknown API key: %w", ErrUnauthorized)
}

var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthProvider  = (*APIKeyAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
