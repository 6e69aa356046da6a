// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, pipeline *Pipeline) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	watcher, err := NewWatcher(dir, pipeline)
	require.NoError(t, err)
	watcher.debounce = 25 * time.Millisecond
	t.Cleanup(watcher.Stop)
	return watcher, dir
}

func TestWatcher_IngestsDroppedFile(t *testing.T) {
	pipeline, index, _ := newTestPipeline(t)
	watcher, dir := newTestWatcher(t, pipeline)
	require.NoError(t, watcher.Start(context.Background()))

	path := filepath.Join(dir, "dropped.txt")
	require.NoError(t, os.WriteFile(path, []byte("Lab results reviewed with patient"), 0o600))

	require.Eventually(t, func() bool {
		_, ok := index.Get("dropped.txt_part_1")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresUnsupportedExtensions(t *testing.T) {
	pipeline, index, _ := newTestPipeline(t)
	watcher, dir := newTestWatcher(t, pipeline)
	require.NoError(t, watcher.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o600))

	// Give the debounce window time to fire if it ever armed.
	time.Sleep(200 * time.Millisecond)
	_, ok := index.Get("image.png_part_1")
	assert.False(t, ok)
}

func TestWatcher_StartFailsOnMissingDir(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	watcher, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), pipeline)
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	assert.Error(t, watcher.Start(context.Background()))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	watcher, _ := newTestWatcher(t, pipeline)
	require.NoError(t, watcher.Start(context.Background()))

	watcher.Stop()
	watcher.Stop()
}

func TestWatcher_NotifiesOnIngested(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	watcher, dir := newTestWatcher(t, pipeline)

	results := make(chan Result, 1)
	watcher.OnIngested = func(r Result) { results <- r }
	require.NoError(t, watcher.Start(context.Background()))

	path := filepath.Join(dir, "referral.txt")
	require.NoError(t, os.WriteFile(path, []byte("Referral faxed to cardiology"), 0o600))

	select {
	case result := <-results:
		assert.Equal(t, "referral.txt", result.Source)
		assert.Equal(t, 1, result.ChunksIndexed)
	case <-time.After(3 * time.Second):
		t.Fatal("ingestion callback never fired")
	}
}
