// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// EventSink receives every trail record for compliance analytics. Sinks see
// the same counts-only records the trail file holds.
type EventSink interface {
	Name() string
	Write(ctx context.Context, record Record) error
	Flush(ctx context.Context) error
	Close()
}

// NopSink discards records.
type NopSink struct{}

func (s *NopSink) Name() string                            { return "nop" }
func (s *NopSink) Write(_ context.Context, _ Record) error { return nil }
func (s *NopSink) Flush(_ context.Context) error           { return nil }
func (s *NopSink) Close()                                  {}

var _ EventSink = (*NopSink)(nil)

// InfluxSink writes trail records into an InfluxDB bucket, one point per
// event tagged by type and outcome. Numeric metadata becomes point fields.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

var _ EventSink = (*InfluxSink)(nil)

// NewInfluxSink connects to InfluxDB. The connection is lazy; the first
// Write surfaces reachability problems.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Write(ctx context.Context, record Record) error {
	ts, err := time.Parse(time.RFC3339, record.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	fields := map[string]interface{}{
		"sequence": record.Sequence,
	}
	for key, value := range record.Metadata {
		switch v := value.(type) {
		case int:
			fields[key] = v
		case int64:
			fields[key] = v
		case float64:
			fields[key] = v
		case bool:
			fields[key] = v
		}
	}

	point := influxdb2.NewPoint(
		"audit_events",
		map[string]string{
			"event_type": record.EventType,
			"outcome":    record.Outcome,
		},
		fields,
		ts,
	)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write the audit point: %w", err)
	}
	return nil
}

func (s *InfluxSink) Flush(ctx context.Context) error {
	return s.writeAPI.Flush(ctx)
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

// SinkFromEnv selects the sink from CASCADIA_AUDIT_SINK: "influxdb" reads
// INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, and INFLUXDB_BUCKET; anything
// else means no sink.
func SinkFromEnv() EventSink {
	if !strings.EqualFold(os.Getenv("CASCADIA_AUDIT_SINK"), "influxdb") {
		return &NopSink{}
	}

	url := os.Getenv("INFLUXDB_URL")
	token := os.Getenv("INFLUXDB_TOKEN")
	org := os.Getenv("INFLUXDB_ORG")
	bucket := os.Getenv("INFLUXDB_BUCKET")
	if url == "" || token == "" || org == "" || bucket == "" {
		slog.Warn("influxdb audit sink requested but not fully configured, events stay file-only")
		return &NopSink{}
	}

	slog.Info("audit events mirrored to influxdb", "url", url, "bucket", bucket)
	return NewInfluxSink(url, token, org, bucket)
}
