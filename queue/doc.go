// Package queue provides Redis-based queue primitives for remote tool
// invocation.
//
// The queue package lets a broker dispatch invocations to workers running
// in other processes or on other hosts. The broker pushes Invocations onto
// per-tool Redis lists, workers consume and execute them, and Outcomes
// flow back through per-correlation pub/sub channels.
//
// # Core Components
//
// Client: Interface for interacting with the invocation queue:
//   - Push/Pop for invocation delivery
//   - PublishOutcome/SubscribeOutcome for result delivery
//   - Tool registration and discovery
//   - Health monitoring and worker tracking
//
// Invocation: A single invocation request carrying the correlation id,
// tool name, JSON-encoded arguments, and trace context.
//
// Outcome: The result of an Invocation, either a rendered payload or an
// error kind plus message.
//
// ToolMeta: Metadata about a registered tool for discovery.
//
// # Redis Key Schema
//
//   - broker:tool:<name>:queue - List for invocations (LPUSH/BRPOP)
//   - broker:tool:<name>:meta - Hash for tool metadata
//   - broker:tool:<name>:health - String with 30s TTL for heartbeat
//   - broker:tool:<name>:workers - Integer counter for active workers
//   - broker:tools:available - Set of all registered tool names
//   - broker:outcome:<correlationID> - Pub/Sub channel for the outcome
//
// The per-correlation outcome channel is what upholds the broker's
// correlation invariant: an outcome can only ever reach the subscriber
// holding the matching correlation id.
//
// # Usage
//
// Dispatching an invocation and waiting for its outcome:
//
//	outcomes, err := client.SubscribeOutcome(ctx, "c1")
//	if err != nil {
//		return err
//	}
//	err = client.Push(ctx, queue.Invocation{
//		CorrelationID: "c1",
//		Tool:          "get_alerts",
//		ArgumentsJSON: `{"state":"NY"}`,
//		SubmittedAt:   time.Now().UnixMilli(),
//	})
//	out := <-outcomes
//
// # Thread Safety
//
// RedisClient is safe for concurrent use by multiple goroutines.
package queue
