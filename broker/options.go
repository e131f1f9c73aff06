package broker

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Option configures the Broker.
type Option func(*config)

// config holds configuration for a Broker instance.
type config struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	meter          metric.Meter
	defaultTimeout time.Duration
	maxInFlight    int
	limiter        *rate.Limiter
}

// WithLogger sets a custom structured logger for the broker.
// If not provided, a JSON logger writing to stdout is created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each invocation is recorded as
// a span carrying the tool name, correlation id, and outcome.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter. The broker records an invocation
// counter, an error counter, a duration histogram, and an in-flight gauge.
func WithMeter(meter metric.Meter) Option {
	return func(c *config) {
		c.meter = meter
	}
}

// WithDefaultTimeout sets the broker-wide execution bound applied when a
// tool does not configure its own. Zero keeps the SDK default (30s).
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *config) {
		c.defaultTimeout = d
	}
}

// WithMaxInFlight bounds the number of simultaneous in-flight invocations.
// When the bound is reached, further invocations fail immediately with
// QUEUE_FULL rather than queueing. Zero disables the bound.
func WithMaxInFlight(n int) Option {
	return func(c *config) {
		c.maxInFlight = n
	}
}

// WithRateLimit sets an admission rate limiter for invocations.
// Invocations wait for a token before dispatch; a cancelled wait fails
// the invocation with CANCELLED.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *config) {
		c.limiter = limiter
	}
}
