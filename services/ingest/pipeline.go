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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
)

// maxConcurrentFiles bounds parallel file ingestion during a directory walk.
const maxConcurrentFiles = 4

// maxFileSizeBytes skips files too large to be chat-context documents.
const maxFileSizeBytes = 10 * 1024 * 1024

// ingestableExtensions are the file types the directory walk picks up.
var ingestableExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".csv":  {},
	".json": {},
	".note": {},
	".soap": {},
}

// Result summarizes one document's trip through the pipeline. Findings
// carry pattern IDs and line numbers, never matched text.
type Result struct {
	Source        string              `json:"source"`
	ChunksIndexed int                 `json:"chunks_indexed"`
	Findings      []redaction.Finding `json:"findings,omitempty"`
}

// Pipeline chunks documents, scans them for PHI, and feeds the index.
type Pipeline struct {
	index    *docindex.Store
	redactor *redaction.Engine
	audit    extensions.AuditLogger
}

// NewPipeline builds a pipeline. A nil audit logger disables the trail.
func NewPipeline(index *docindex.Store, redactor *redaction.Engine, audit extensions.AuditLogger) *Pipeline {
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return &Pipeline{index: index, redactor: redactor, audit: audit}
}

// IngestContent splits, scans, and indexes one document. Indexed content is
// stored as received; the scan findings tell the operator what PHI the
// document carries so retention policy can be applied to the source.
func (p *Pipeline) IngestContent(ctx context.Context, source, content string, metadata map[string]string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	chunks, err := SplitDocument(source, content)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		slog.Warn("no chunks produced after splitting", "source", source)
		return Result{Source: source}, nil
	}

	findings := p.redactor.ScanContent(content)

	if metadata == nil {
		metadata = make(map[string]string, 2)
	}
	if _, ok := metadata["date"]; !ok {
		metadata["date"] = time.Now().UTC().Format("2006-01-02")
	}
	metadata["parent_source"] = source

	indexed := 0
	for _, chunk := range chunks {
		if _, err := p.index.Add(chunk.ID, chunk.Content, metadata); err != nil {
			return Result{Source: source, ChunksIndexed: indexed, Findings: findings},
				fmt.Errorf("failed to index chunk %q: %w", chunk.ID, err)
		}
		indexed++
	}

	if err := p.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "document.indexed",
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       "index",
		ResourceType: "document",
		ResourceID:   source,
		Outcome:      "success",
		Metadata: map[string]any{
			"chunk_count":   indexed,
			"finding_count": len(findings),
		},
	}); err != nil {
		slog.Error("failed to audit document ingestion", "source", source, "error", err)
	}

	slog.Info("document ingested",
		"source", source, "chunks", indexed, "phi_findings", len(findings))
	return Result{Source: source, ChunksIndexed: indexed, Findings: findings}, nil
}

// IngestFile reads and ingests a single file. The source name is the file's
// base name so re-ingesting a moved file still replaces its chunks.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.Size() > maxFileSizeBytes {
		return Result{}, fmt.Errorf("file %q exceeds the %d byte ingestion limit", path, maxFileSizeBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %q: %w", path, err)
	}

	metadata := map[string]string{
		"date": info.ModTime().UTC().Format("2006-01-02"),
	}
	return p.IngestContent(ctx, filepath.Base(path), string(content), metadata)
}

// IngestDir walks a directory and ingests every supported file, a few at a
// time. The first failure cancels the remaining work.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) ([]Result, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := ingestableExtensions[filepath.Ext(path)]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", dir, err)
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, path := range paths {
		g.Go(func() error {
			result, err := p.IngestFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
