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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAccumulator allocates an accumulator or skips the test when the
// environment cannot lock memory and the insecure fallback is not enabled.
func newTestAccumulator(t *testing.T) TokenAccumulator {
	t.Helper()
	acc, err := NewTokenAccumulator()
	if err != nil {
		t.Skipf("secure memory unavailable: %v", err)
	}
	return acc
}

func TestTokenAccumulator_WriteAndFinalize(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	tokens := []string{"Hello", " ", "world", "!"}
	for _, token := range tokens {
		require.NoError(t, acc.Write(token))
	}

	answer, hash, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", answer)

	expected := sha256.Sum256([]byte("Hello world!"))
	assert.Equal(t, hex.EncodeToString(expected[:]), hash)
}

func TestTokenAccumulator_EmptyFinalize(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	answer, hash, err := acc.Finalize()
	require.NoError(t, err)
	assert.Empty(t, answer)

	expected := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(expected[:]), hash)
}

func TestTokenAccumulator_WriteAfterFinalize(t *testing.T) {
	acc := newTestAccumulator(t)

	require.NoError(t, acc.Write("one"))
	_, _, err := acc.Finalize()
	require.NoError(t, err)

	err = acc.Write("two")
	assert.Error(t, err)
}

func TestTokenAccumulator_FinalizeTwice(t *testing.T) {
	acc := newTestAccumulator(t)

	_, _, err := acc.Finalize()
	require.NoError(t, err)

	_, _, err = acc.Finalize()
	assert.Error(t, err)
}

func TestTokenAccumulator_DestroyIsIdempotent(t *testing.T) {
	acc := newTestAccumulator(t)
	acc.Destroy()
	acc.Destroy()

	err := acc.Write("after destroy")
	assert.Error(t, err)
}

func TestTokenAccumulator_Overflow(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	big := strings.Repeat("x", secureBufferSize)
	require.NoError(t, acc.Write(big))

	err := acc.Write("one more byte")
	require.Error(t, err)

	// A buffer that overflowed must refuse to release a partial answer.
	_, _, err = acc.Finalize()
	assert.Error(t, err)
}

func TestTokenAccumulator_ConcurrentWrites(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = acc.Write("token ")
		}()
	}
	wg.Wait()

	answer, _, err := acc.Finalize()
	require.NoError(t, err)
	assert.Len(t, answer, 50*len("token "))
}

func TestTokenAccumulator_Identity(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	_, err := uuid.Parse(acc.ID())
	require.NoError(t, err)
	assert.False(t, acc.CreatedAt().IsZero())
}
