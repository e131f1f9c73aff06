// Package worker provides the execution loop for queue-based remote tools.
//
// A worker process hosts a single tool. Run connects to Redis, registers
// the tool's metadata and argument schema for discovery, and starts a pool
// of goroutines that pop invocations from the tool's queue, validate
// arguments against the tool's schema, execute the handler within its
// resolved timeout, and publish the outcome to the invocation's
// correlation channel.
//
// Workers mirror the broker's error taxonomy: schema violations become
// INVALID_ARGUMENTS outcomes, exceeded bounds become TIMEOUT, and handler
// failures (including panics) become HANDLER_ERROR. The worker process
// itself survives any handler failure.
//
// A heartbeat goroutine refreshes the tool's health key so brokers can
// distinguish a live tool from an abandoned queue. Shutdown is graceful:
// on SIGTERM or SIGINT, workers finish their current invocations before
// the process exits.
//
// # Usage
//
//	t, _ := tool.New(tool.NewConfig().
//	    SetName("get_alerts").
//	    SetInputSchema(alertsSchema).
//	    SetExecuteFunc(getAlerts))
//
//	if err := worker.Run(t, worker.Options{
//	    RedisURL:    "redis://localhost:6379",
//	    Concurrency: 4,
//	}); err != nil {
//	    log.Fatal(err)
//	}
package worker
