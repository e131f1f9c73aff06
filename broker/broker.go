package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/toolmesh/broker/brokererr"
	"github.com/toolmesh/broker/registry"
	"github.com/toolmesh/broker/schema"
	"github.com/toolmesh/broker/tool"
)

// Broker mediates between a requester and a set of registered tools.
// It advertises the registry contents, validates invocation requests,
// dispatches to the matching handler, and produces exactly one Result per
// request. Handler faults never propagate to the caller.
//
// A Broker is safe for concurrent use; each invocation is independent and
// shares nothing with other in-flight invocations beyond the read-only
// registry.
type Broker struct {
	registry       *registry.Registry
	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *otelMetrics
	defaultTimeout time.Duration
	limiter        *rate.Limiter

	// slots bounds in-flight invocations; nil means unbounded.
	slots chan struct{}
}

// New creates a Broker serving the given registry.
//
// Example:
//
//	b, err := broker.New(reg,
//	    broker.WithLogger(logger),
//	    broker.WithMaxInFlight(64),
//	)
func New(reg *registry.Registry, opts ...Option) (*Broker, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	metrics, err := newOTelMetrics(cfg.meter)
	if err != nil {
		return nil, err
	}

	b := &Broker{
		registry:       reg,
		logger:         cfg.logger,
		tracer:         cfg.tracer,
		metrics:        metrics,
		defaultTimeout: cfg.defaultTimeout,
		limiter:        cfg.limiter,
	}

	if cfg.maxInFlight > 0 {
		b.slots = make(chan struct{}, cfg.maxInFlight)
	}

	return b, nil
}

// ListTools returns descriptors for all registered tools in lexical name
// order. It has no side effects.
func (b *Broker) ListTools() []tool.Descriptor {
	return b.registry.List()
}

// Invoke executes a single invocation request and returns its Result.
// The Result's CorrelationID always matches the request's; when the
// request carries none, the broker assigns a UUID so the caller can still
// correlate.
//
// Failure modes map to broker error codes: an unregistered name yields
// UNKNOWN_TOOL, a schema violation INVALID_ARGUMENTS naming the offending
// parameter, a handler fault or panic HANDLER_ERROR with the cause
// preserved, an exceeded execution bound TIMEOUT, and caller cancellation
// CANCELLED. A handler completion that arrives after the timeout fired is
// discarded, never delivered.
func (b *Broker) Invoke(ctx context.Context, req Request) Result {
	start := time.Now()

	corrID := req.CorrelationID
	if corrID == "" {
		corrID = uuid.NewString()
	}

	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, "broker.invoke")
		span.SetAttributes(
			attribute.String("broker.tool", req.Tool),
			attribute.String("broker.correlation_id", corrID),
		)
		defer span.End()
	}

	res := b.invoke(ctx, corrID, req)
	res.Duration = time.Since(start)

	b.finish(ctx, req.Tool, res)
	return res
}

// invoke performs admission, lookup, validation, and dispatch.
func (b *Broker) invoke(ctx context.Context, corrID string, req Request) Result {
	if b.metrics != nil {
		b.metrics.invocations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", req.Tool),
		))
	}

	// Admission: rate limit, then in-flight bound
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return b.failure(corrID, req.Tool,
				brokererr.New(req.Tool, "invoke", brokererr.CodeCancelled,
					"cancelled while waiting for admission").WithCause(err))
		}
	}

	if b.slots != nil {
		select {
		case b.slots <- struct{}{}:
			defer func() { <-b.slots }()
		default:
			return b.failure(corrID, req.Tool,
				brokererr.New(req.Tool, "invoke", brokererr.CodeQueueFull,
					fmt.Sprintf("in-flight bound of %d reached", cap(b.slots))))
		}
	}

	t, ok := b.registry.Get(req.Tool)
	if !ok {
		return b.failure(corrID, req.Tool,
			brokererr.New(req.Tool, "invoke", brokererr.CodeUnknownTool,
				"tool is not registered"))
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if err := t.InputSchema().ValidateArguments(args); err != nil {
		be := brokererr.New(req.Tool, "invoke", brokererr.CodeInvalidArguments,
			err.Error()).WithCause(err)
		var fe *schema.FieldError
		if errors.As(err, &fe) {
			be = be.WithParameter(fe.Field)
		}
		return b.failure(corrID, req.Tool, be)
	}

	timeouts := t.Timeouts()
	if req.Timeout > 0 {
		if err := timeouts.ValidateTimeout(req.Timeout); err != nil {
			return b.failure(corrID, req.Tool,
				brokererr.New(req.Tool, "invoke", brokererr.CodeInvalidArguments,
					err.Error()).WithParameter("timeout").WithCause(err))
		}
	}

	requested := req.Timeout
	if requested == 0 && timeouts.Default == 0 && b.defaultTimeout > 0 {
		requested = b.defaultTimeout
	}
	bound := timeouts.Resolve(requested)

	return b.dispatch(ctx, corrID, t, args, bound)
}

// handlerOutcome carries a handler's return value or fault across the
// dispatch goroutine boundary.
type handlerOutcome struct {
	value any
	err   error
}

// dispatch runs the handler under the resolved execution bound.
// The handler runs in its own goroutine writing to a buffered channel, so
// a completion that arrives after the bound has fired is dropped rather
// than delivered.
func (b *Broker) dispatch(ctx context.Context, corrID string, t tool.Tool, args map[string]any, bound time.Duration) Result {
	execCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	if b.metrics != nil {
		b.metrics.inFlight.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", t.Name())))
		defer b.metrics.inFlight.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", t.Name())))
	}

	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerOutcome{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		value, err := t.Execute(execCtx, args)
		done <- handlerOutcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			// A handler that propagates its context error is reported the
			// same as one the select caught mid-flight.
			if errors.Is(out.err, context.Canceled) && ctx.Err() != nil {
				return b.failure(corrID, t.Name(),
					brokererr.New(t.Name(), "invoke", brokererr.CodeCancelled,
						"invocation cancelled by caller").WithCause(out.err))
			}
			if errors.Is(out.err, context.DeadlineExceeded) {
				return b.failure(corrID, t.Name(),
					brokererr.New(t.Name(), "invoke", brokererr.CodeTimeout,
						fmt.Sprintf("handler exceeded %v bound", bound)).WithCause(out.err))
			}
			return b.failure(corrID, t.Name(),
				brokererr.New(t.Name(), "invoke", brokererr.CodeHandlerError,
					"handler failed").WithCause(out.err))
		}

		payload, err := tool.Render(out.value)
		if err != nil {
			return b.failure(corrID, t.Name(),
				brokererr.New(t.Name(), "invoke", brokererr.CodeHandlerError,
					"handler returned unrenderable value").WithCause(err))
		}

		return Result{
			CorrelationID: corrID,
			Tool:          t.Name(),
			OK:            true,
			Payload:       payload,
		}

	case <-execCtx.Done():
		if ctx.Err() == context.Canceled {
			return b.failure(corrID, t.Name(),
				brokererr.New(t.Name(), "invoke", brokererr.CodeCancelled,
					"invocation cancelled by caller").WithCause(ctx.Err()))
		}
		return b.failure(corrID, t.Name(),
			brokererr.New(t.Name(), "invoke", brokererr.CodeTimeout,
				fmt.Sprintf("handler exceeded %v bound", bound)).WithCause(execCtx.Err()))
	}
}

// failure builds a failed Result from a structured broker error.
func (b *Broker) failure(corrID, toolName string, be *brokererr.Error) Result {
	return Result{
		CorrelationID: corrID,
		Tool:          toolName,
		OK:            false,
		ErrorKind:     be.Code,
		ErrorMessage:  be.Error(),
		Err:           be,
	}
}

// finish records the invocation outcome on the logger, metrics, and the
// active span, if any.
func (b *Broker) finish(ctx context.Context, toolName string, res Result) {
	if res.OK {
		b.logger.Debug("invocation succeeded",
			"tool", toolName,
			"correlation_id", res.CorrelationID,
			"duration", res.Duration,
		)
	} else {
		b.logger.Warn("invocation failed",
			"tool", toolName,
			"correlation_id", res.CorrelationID,
			"error_kind", res.ErrorKind,
			"error", res.ErrorMessage,
			"duration", res.Duration,
		)
	}

	if b.metrics != nil {
		b.metrics.duration.Record(ctx, float64(res.Duration.Milliseconds()),
			metric.WithAttributes(attribute.String("tool", toolName)))
		if !res.OK {
			b.metrics.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", toolName),
				attribute.String("error_kind", res.ErrorKind),
			))
		}
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		if res.OK {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, res.ErrorMessage)
			span.SetAttributes(attribute.String("broker.error_kind", res.ErrorKind))
		}
	}
}
