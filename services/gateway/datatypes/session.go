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
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when clearing a session that does not exist.
var ErrSessionNotFound = errors.New("session not found")

// History truncation bounds. When a session grows past maxSessionMessages,
// it is cut back to the system prompt plus the most recent keepRecentMessages
// turns so prompts stay inside the model's context window.
const (
	maxSessionMessages = 20
	keepRecentMessages = 10
)

// Session is one client conversation held in memory.
type Session struct {
	ID         string    `json:"session_id"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// SessionStore owns every in-memory chat session. All access goes through
// the store's lock; Session values handed out are copies.
type SessionStore struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	systemPrompt string
	now          func() time.Time
}

// NewSessionStore builds an empty store. Every new session is seeded with
// systemPrompt as its first message.
func NewSessionStore(systemPrompt string) *SessionStore {
	return &SessionStore{
		sessions:     make(map[string]*Session),
		systemPrompt: systemPrompt,
		now:          time.Now,
	}
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// An empty ID allocates a fresh UUID. The returned ID is always usable for
// later calls.
func (s *SessionStore) GetOrCreate(id string) (Session, string) {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		now := s.now().UTC()
		session = &Session{
			ID:         id,
			Messages:   []Message{{Role: RoleSystem, Content: s.systemPrompt}},
			CreatedAt:  now,
			LastActive: now,
		}
		s.sessions[id] = session
	}
	return copySession(session), id
}

// Append adds messages to a session, creating it first if needed, and
// applies the history truncation rule.
func (s *SessionStore) Append(id string, messages ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		now := s.now().UTC()
		session = &Session{
			ID:         id,
			Messages:   []Message{{Role: RoleSystem, Content: s.systemPrompt}},
			CreatedAt:  now,
			LastActive: now,
		}
		s.sessions[id] = session
	}

	session.Messages = append(session.Messages, messages...)
	session.LastActive = s.now().UTC()

	if len(session.Messages) > maxSessionMessages {
		truncated := make([]Message, 0, 1+keepRecentMessages)
		truncated = append(truncated, session.Messages[0])
		truncated = append(truncated,
			session.Messages[len(session.Messages)-keepRecentMessages:]...)
		session.Messages = truncated
	}
}

// History returns a copy of a session's messages, or nil if the session
// does not exist.
func (s *SessionStore) History(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Message, len(session.Messages))
	copy(out, session.Messages)
	return out
}

// Clear removes one session.
func (s *SessionStore) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// ClearAll removes every session and reports how many were dropped.
func (s *SessionStore) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n
}

// Count reports how many sessions are live.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copySession(session *Session) Session {
	out := *session
	out.Messages = make([]Message, len(session.Messages))
	copy(out.Messages, session.Messages)
	return out
}
