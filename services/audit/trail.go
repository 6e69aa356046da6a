// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit persists the gateway's compliance trail.
//
// The trail is a JSON-lines file where each record carries a hash of the
// previous record, so any edit to history breaks verification. Records hold
// event types, outcomes, and counts only. Message content and matched PHI
// text never reach this package.
package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
)

// GenesisHash anchors the first record in the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// trailFileMode restricts the audit file to its owner (0600). The trail
// reveals which resources existed and when they were touched, which is
// itself sensitive.
const trailFileMode = 0600

// maxResourceIDChars bounds the stored resource identifier. Enough to
// correlate against service logs without copying full identifiers around.
const maxResourceIDChars = 12

// Record is one line of the trail file.
type Record struct {
	Sequence     int64          `json:"sequence"`
	Timestamp    string         `json:"timestamp"`
	EventType    string         `json:"event_type"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PrevHash     string         `json:"prev_hash"`
	EntryHash    string         `json:"entry_hash"`
}

// Trail writes hash-chained audit records to a JSON-lines file and
// optionally fans each record out to an EventSink.
//
// # Thread Safety
//
// All methods are safe for concurrent use. File writes are serialized via
// mutex.
type Trail struct {
	file     *os.File
	path     string
	sink     EventSink
	mu       sync.Mutex
	sequence int64
	prevHash string
}

var _ extensions.AuditLogger = (*Trail)(nil)

// NewTrail opens (or creates) the trail file at path and restores the hash
// chain state from its last record. sink may be nil.
func NewTrail(path string, sink EventSink) (*Trail, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, trailFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open the audit trail file: %w", err)
	}

	t := &Trail{
		file:     file,
		path:     path,
		sink:     sink,
		prevHash: GenesisHash,
	}
	if err := t.restoreChainState(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to restore the audit chain state: %w", err)
	}

	slog.Info("audit trail opened",
		"path", path,
		"starting_sequence", t.sequence,
		"sink", sinkName(sink))
	return t, nil
}

// Log appends one event to the trail and forwards it to the sink. Sink
// failures are logged and do not fail the append.
func (t *Trail) Log(ctx context.Context, event extensions.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	t.sequence++
	record := Record{
		Sequence:     t.sequence,
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
		EventType:    event.EventType,
		UserID:       event.UserID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   truncateID(event.ResourceID),
		Outcome:      event.Outcome,
		Metadata:     event.Metadata,
		PrevHash:     t.prevHash,
	}
	record.EntryHash = computeRecordHash(record)

	if err := t.writeRecord(record); err != nil {
		t.sequence--
		t.mu.Unlock()
		return fmt.Errorf("failed to write the audit record: %w", err)
	}
	t.prevHash = record.EntryHash
	t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.Write(ctx, record); err != nil {
			slog.Warn("audit sink write failed",
				"event_type", record.EventType, "error", err)
		}
	}
	return nil
}

// Query reads the trail file and returns matching events, newest first.
func (t *Trail) Query(_ context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	records, err := t.readRecords()
	if err != nil {
		return nil, err
	}

	var events []extensions.AuditEvent
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if filter.EventType != "" && record.EventType != filter.EventType {
			continue
		}
		if filter.UserID != "" && record.UserID != filter.UserID {
			continue
		}
		ts, err := time.Parse(time.RFC3339, record.Timestamp)
		if err != nil {
			continue
		}
		if !filter.Since.IsZero() && ts.Before(filter.Since) {
			continue
		}
		events = append(events, extensions.AuditEvent{
			EventType:    record.EventType,
			Timestamp:    ts,
			UserID:       record.UserID,
			Action:       record.Action,
			ResourceType: record.ResourceType,
			ResourceID:   record.ResourceID,
			Outcome:      record.Outcome,
			Metadata:     record.Metadata,
		})
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}
	return events, nil
}

// Flush syncs the trail file and flushes the sink.
func (t *Trail) Flush(ctx context.Context) error {
	t.mu.Lock()
	err := t.file.Sync()
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to sync the audit trail file: %w", err)
	}
	if t.sink != nil {
		return t.sink.Flush(ctx)
	}
	return nil
}

// Close flushes and closes the trail file and the sink.
func (t *Trail) Close() error {
	if t.sink != nil {
		t.sink.Close()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// Path returns the trail file path.
func (t *Trail) Path() string {
	return t.path
}

// Verify walks the full trail and checks every chain link and entry hash.
//
// # Outputs
//
//   - valid: True when the entire chain is intact.
//   - breakSequence: Sequence number of the first broken record (-1 if valid).
//   - error: Non-nil if verification fails to complete.
func (t *Trail) Verify() (valid bool, breakSequence int64, err error) {
	records, err := t.readRecords()
	if err != nil {
		return false, -1, err
	}

	prevHash := GenesisHash
	for _, record := range records {
		if record.PrevHash != prevHash {
			return false, record.Sequence, nil
		}
		expected := record.EntryHash
		record.EntryHash = ""
		if computeRecordHash(record) != expected {
			return false, record.Sequence, nil
		}
		prevHash = expected
	}
	return true, -1, nil
}

// EntryCount reports how many records the trail holds.
func (t *Trail) EntryCount() (int64, error) {
	records, err := t.readRecords()
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

func (t *Trail) writeRecord(record Record) error {
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = t.file.Write(append(jsonBytes, '\n'))
	return err
}

// restoreChainState reads the last record of an existing trail so appends
// continue the chain instead of restarting it.
func (t *Trail) restoreChainState() error {
	records, err := t.readRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	last := records[len(records)-1]
	t.sequence = last.Sequence
	t.prevHash = last.EntryHash
	return nil
}

// readRecords opens a separate read handle so it never disturbs the append
// handle.
func (t *Trail) readRecords() ([]Record, error) {
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open the audit trail for reading: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Sequence == 0 {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read the audit trail: %w", err)
	}
	return records, nil
}

// computeRecordHash hashes the record with EntryHash cleared, giving a
// deterministic digest to chain on.
func computeRecordHash(record Record) string {
	record.EntryHash = ""
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	digest := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(digest[:])
}

func truncateID(id string) string {
	if len(id) > maxResourceIDChars {
		return id[:maxResourceIDChars]
	}
	return id
}

func sinkName(sink EventSink) string {
	if sink == nil {
		return "none"
	}
	return sink.Name()
}
