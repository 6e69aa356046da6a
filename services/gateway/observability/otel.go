// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider sets the global OpenTelemetry meter provider.
//
// # Description
//
// In production mode the OTel metrics pipeline is bridged into the default
// Prometheus registry, so OTel-instrumented dependencies surface on the same
// /metrics endpoint as GatewayMetrics. In development mode metrics are
// printed to stdout on a 30s interval instead.
//
// # Inputs
//
//   - development: Use the stdout exporter instead of the Prometheus bridge.
//
// # Outputs
//
//   - func(context.Context) error: Shutdown hook. Call during cleanup.
//   - error: Non-nil if the exporter could not be built.
func InitMeterProvider(development bool) (func(context.Context) error, error) {
	var provider *sdkmetric.MeterProvider

	if development {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(30*time.Second))),
		)
		slog.Info("OTel metrics exporting to stdout (development mode)")
	} else {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus metric exporter: %w", err)
		}
		provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		slog.Info("OTel metrics bridged into the Prometheus registry")
	}

	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
