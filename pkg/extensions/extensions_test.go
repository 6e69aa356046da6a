// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.AuthProvider == nil {
		t.Error("DefaultOptions should set AuthProvider")
	}
	if opts.AuthzProvider == nil {
		t.Error("DefaultOptions should set AuthzProvider")
	}
	if opts.AuditLogger == nil {
		t.Error("DefaultOptions should set AuditLogger")
	}
	if opts.MessageFilter == nil {
		t.Error("DefaultOptions should set MessageFilter")
	}
}

func TestServiceOptions_Fluent(t *testing.T) {
	provider := NewAPIKeyAuthProvider(nil)
	opts := DefaultOptions().WithAuth(provider)

	if opts.AuthProvider != provider {
		t.Error("WithAuth should replace the provider")
	}
	if _, ok := opts.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("WithAuth should leave other fields untouched")
	}
}

func TestNopAuthProvider(t *testing.T) {
	provider := &NopAuthProvider{}

	info, err := provider.Validate(context.Background(), "")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if info.UserID != "local-user" {
		t.Errorf("Expected local-user, got %s", info.UserID)
	}
	if !info.HasRole("admin") {
		t.Error("Local user should have the admin role")
	}
	if info.HasRole("auditor") {
		t.Error("Local user should not have the auditor role")
	}
}

func TestAPIKeyAuthProvider(t *testing.T) {
	provider := NewAPIKeyAuthProvider(map[string]AuthInfo{
		"ck_live_abc123": {UserID: "frontdesk", Roles: []string{"clinician"}},
	})

	info, err := provider.Validate(context.Background(), "ck_live_abc123")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if info.UserID != "frontdesk" {
		t.Errorf("Expected frontdesk, got %s", info.UserID)
	}

	_, err = provider.Validate(context.Background(), "ck_live_wrong1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for wrong key, got %v", err)
	}

	_, err = provider.Validate(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for empty key, got %v", err)
	}
}

func TestNopAuthzProvider(t *testing.T) {
	provider := &NopAuthzProvider{}

	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{UserID: "anyone"},
		Action:       "delete",
		ResourceType: "session",
	})
	if err != nil {
		t.Errorf("NopAuthzProvider should allow everything, got %v", err)
	}
}

func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	ctx := context.Background()

	if err := logger.Log(ctx, AuditEvent{EventType: "chat.message"}); err != nil {
		t.Errorf("Log returned error: %v", err)
	}
	events, err := logger.Query(ctx, AuditFilter{})
	if err != nil {
		t.Errorf("Query returned error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Nop logger should return no events, got %d", len(events))
	}
	if err := logger.Flush(ctx); err != nil {
		t.Errorf("Flush returned error: %v", err)
	}
}

func TestNopMessageFilter(t *testing.T) {
	filter := &NopMessageFilter{}
	ctx := context.Background()

	result, err := filter.FilterInput(ctx, "hello")
	if err != nil {
		t.Fatalf("FilterInput returned error: %v", err)
	}
	if result.Filtered != "hello" || result.WasModified || result.WasBlocked {
		t.Errorf("Nop filter should pass through unchanged, got %+v", result)
	}
}
