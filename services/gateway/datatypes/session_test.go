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
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrompt = "You are a careful assistant."

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := NewSessionStore(testPrompt)

	session, id := store.GetOrCreate("")

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, RoleSystem, session.Messages[0].Role)
	assert.Equal(t, testPrompt, session.Messages[0].Content)
	assert.Equal(t, 1, store.Count())

	again, sameID := store.GetOrCreate(id)
	assert.Equal(t, id, sameID)
	assert.Equal(t, session.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, store.Count())
}

func TestSessionStore_AppendAndHistory(t *testing.T) {
	store := NewSessionStore(testPrompt)
	_, id := store.GetOrCreate("")

	store.Append(id,
		Message{Role: RoleUser, Content: "hello"},
		Message{Role: RoleAssistant, Content: "hi there"},
	)

	history := store.History(id)
	require.Len(t, history, 3)
	assert.Equal(t, "hello", history[1].Content)
	assert.Equal(t, "hi there", history[2].Content)
}

func TestSessionStore_TruncationKeepsSystemPromptAndRecentTurns(t *testing.T) {
	store := NewSessionStore(testPrompt)
	_, id := store.GetOrCreate("")

	for i := 0; i < 15; i++ {
		store.Append(id,
			Message{Role: RoleUser, Content: fmt.Sprintf("question %d", i)},
			Message{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}

	history := store.History(id)
	require.Len(t, history, 11)
	assert.Equal(t, RoleSystem, history[0].Role)
	assert.Equal(t, testPrompt, history[0].Content)
	assert.Equal(t, "answer 14", history[len(history)-1].Content)
}

func TestSessionStore_Clear(t *testing.T) {
	store := NewSessionStore(testPrompt)
	_, id := store.GetOrCreate("")

	require.NoError(t, store.Clear(id))
	assert.Nil(t, store.History(id))
	assert.ErrorIs(t, store.Clear(id), ErrSessionNotFound)
}

func TestSessionStore_ClearAll(t *testing.T) {
	store := NewSessionStore(testPrompt)
	store.GetOrCreate("")
	store.GetOrCreate("")
	store.GetOrCreate("")

	assert.Equal(t, 3, store.ClearAll())
	assert.Equal(t, 0, store.Count())
}

func TestSessionStore_HistoryReturnsACopy(t *testing.T) {
	store := NewSessionStore(testPrompt)
	_, id := store.GetOrCreate("")
	store.Append(id, Message{Role: RoleUser, Content: "original"})

	history := store.History(id)
	history[1].Content = "mutated"

	assert.Equal(t, "original", store.History(id)[1].Content)
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	store := NewSessionStore(testPrompt)
	_, id := store.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Append(id, Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", n)})
		}(i)
	}
	wg.Wait()

	// 21 raw messages truncate to system prompt + last 10.
	assert.Len(t, store.History(id), 11)
}

func TestSanitizeForLogging(t *testing.T) {
	assert.Equal(t, "short", SanitizeForLogging("short"))

	long := SanitizeForLogging(string(make([]byte, 500)))
	assert.Len(t, long, 103)
	assert.Contains(t, long, "...")
}
