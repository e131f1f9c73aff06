package broker

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// otelMetrics holds the OpenTelemetry metric instruments for the broker.
// They are created once in New and reused for all invocations.
type otelMetrics struct {
	// invocations increments for every Invoke call.
	invocations metric.Int64Counter

	// failures increments for every failed Result, tagged with the
	// error kind.
	failures metric.Int64Counter

	// duration records invocation duration in milliseconds.
	duration metric.Float64Histogram

	// inFlight tracks the number of invocations currently executing.
	inFlight metric.Int64UpDownCounter
}

// newOTelMetrics creates the broker's metric instruments from the meter.
// Returns nil without error when no meter is configured.
func newOTelMetrics(meter metric.Meter) (*otelMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	m := &otelMetrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"broker.invocations",
		metric.WithDescription("Number of tool invocations accepted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create invocation counter: %w", err)
	}

	m.failures, err = meter.Int64Counter(
		"broker.failures",
		metric.WithDescription("Number of invocations that produced a failed result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"broker.invoke.duration",
		metric.WithDescription("Invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	m.inFlight, err = meter.Int64UpDownCounter(
		"broker.inflight",
		metric.WithDescription("Invocations currently executing"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inflight gauge: %w", err)
	}

	return m, nil
}
