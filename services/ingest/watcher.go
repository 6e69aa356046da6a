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
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow is how long a file must sit quiet before it is ingested.
// Editors and copies touch a file repeatedly; ingesting on every write
// would index half-copied documents.
const debounceWindow = 500 * time.Millisecond

// Watcher ingests files dropped into a directory. Each created or written
// file is debounced and then fed through the pipeline.
type Watcher struct {
	dir      string
	pipeline *Pipeline
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// OnIngested, when set before Start, is invoked after each successful
	// ingestion. Used for metrics; failures never reach it.
	OnIngested func(Result)

	mu       sync.Mutex
	pending  map[string]*time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher builds a watcher over one drop directory.
func NewWatcher(dir string, pipeline *Pipeline) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		pipeline: pipeline,
		watcher:  fsw,
		debounce: debounceWindow,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the event loop is running.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	go w.run(ctx)
	slog.Info("ingestion watcher started", "dir", w.dir)
	return nil
}

// Stop halts the watcher and cancels any pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		for _, timer := range w.pending {
			timer.Stop()
		}
		w.pending = make(map[string]*time.Timer)
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, supported := ingestableExtensions[filepath.Ext(event.Name)]; !supported {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("ingestion watcher error", "error", err)
		}
	}
}

// schedule arms or rearms the debounce timer for one path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		result, err := w.pipeline.IngestFile(ctx, path)
		if err != nil {
			slog.Error("failed to ingest watched file", "path", path, "error", err)
			return
		}
		if w.OnIngested != nil {
			w.OnIngested(result)
		}
	})
}
