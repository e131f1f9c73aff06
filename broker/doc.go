// Package broker implements the tool invocation broker.
//
// The broker is the mediator between a requester (typically a language
// model orchestrator) and a set of registered tools. It advertises the
// registry contents through ListTools, accepts structured invocation
// requests through Invoke, dispatches to the matching handler, and
// produces a structured Result or a structured failure. Every invocation
// produces exactly one Result; no error is ever silently dropped.
//
// # Dispatch Model
//
// Each Invoke call is independent. Handlers run in their own goroutine
// under a per-invocation execution bound, so a handler performing external
// I/O never blocks unrelated invocations. Cancellation is request-scoped:
// cancelling or timing out one invocation does not affect others. A
// handler completion that arrives after its bound fired is discarded.
//
// # Error Reporting
//
// Broker-level failures (UNKNOWN_TOOL, INVALID_ARGUMENTS, TIMEOUT,
// HANDLER_ERROR, CANCELLED, QUEUE_FULL) surface as failed Results carrying
// the error kind and a human-readable message. Handler-level domain
// failures, such as an unreachable upstream API, are by convention
// reported by the handler inside a successful Result payload as a
// descriptive message.
//
// # Usage
//
//	reg := registry.New(logger)
//	_ = reg.RegisterAll(weather.Tools(nil)...)
//
//	b, err := broker.New(reg,
//	    broker.WithLogger(logger),
//	    broker.WithMaxInFlight(64),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := b.Invoke(ctx, broker.Request{
//	    CorrelationID: "c1",
//	    Tool:          "get_alerts",
//	    Arguments:     map[string]any{"state": "NY"},
//	})
package broker
