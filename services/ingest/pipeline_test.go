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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
)

// recordingAudit captures events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, event extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Query(context.Context, extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	return nil, nil
}

func (r *recordingAudit) Flush(context.Context) error { return nil }

func (r *recordingAudit) snapshot() []extensions.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]extensions.AuditEvent(nil), r.events...)
}

func newTestPipeline(t *testing.T) (*Pipeline, *docindex.Store, *recordingAudit) {
	t.Helper()
	engine, err := redaction.NewEngine()
	require.NoError(t, err)
	index := docindex.New()
	audit := &recordingAudit{}
	return NewPipeline(index, engine, audit), index, audit
}

func TestIngestContent_IndexesChunksAndAudits(t *testing.T) {
	pipeline, index, audit := newTestPipeline(t)

	result, err := pipeline.IngestContent(context.Background(), "intake.txt",
		"Patient reports improved mobility after therapy", nil)

	require.NoError(t, err)
	assert.Equal(t, "intake.txt", result.Source)
	assert.Equal(t, 1, result.ChunksIndexed)

	doc, ok := index.Get("intake.txt_part_1")
	require.True(t, ok)
	assert.Equal(t, "intake.txt", doc.Metadata["parent_source"])
	assert.NotEmpty(t, doc.Metadata["date"])

	events := audit.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "document.indexed", events[0].EventType)
	assert.Equal(t, "intake.txt", events[0].ResourceID)
	assert.Equal(t, 1, events[0].Metadata["chunk_count"])
}

func TestIngestContent_ReportsPHIFindings(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	result, err := pipeline.IngestContent(context.Background(), "referral.txt",
		"Referral for patient with SSN 123-45-6789 pending review", nil)

	require.NoError(t, err)
	require.NotEmpty(t, result.Findings)
	for _, finding := range result.Findings {
		assert.NotContains(t, finding.Preview, "123-45-6789")
	}
}

func TestIngestContent_CancelledContext(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.IngestContent(ctx, "intake.txt", "never indexed", nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestFile_UsesBaseNameAsSource(t *testing.T) {
	pipeline, index, _ := newTestPipeline(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.md")
	require.NoError(t, os.WriteFile(path, []byte("# Visit\nRoutine checkup complete"), 0o600))

	result, err := pipeline.IngestFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "summary.md", result.Source)
	_, ok := index.Get("summary.md_part_1")
	assert.True(t, ok)
}

func TestIngestFile_RejectsOversizedFiles(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(maxFileSizeBytes+1))
	require.NoError(t, f.Close())

	_, err = pipeline.IngestFile(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion limit")
}

func TestIngestDir_SkipsUnsupportedExtensions(t *testing.T) {
	pipeline, index, _ := newTestPipeline(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first document"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("second document"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte{0x00, 0x01}, 0o600))

	results, err := pipeline.IngestDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Len(t, results, 2)
	_, ok := index.Get("c.bin_part_1")
	assert.False(t, ok)
}
