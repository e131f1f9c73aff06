package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/toolmesh/broker/brokererr"
	"github.com/toolmesh/broker/config"
	"github.com/toolmesh/broker/queue"
	"github.com/toolmesh/broker/tool"
)

// Options configures the worker behavior.
type Options struct {
	// RedisURL is the Redis connection string (e.g., "redis://localhost:6379")
	RedisURL string

	// Concurrency is the number of worker goroutines to start.
	// If 0, uses value from broker.yaml or default (4).
	Concurrency int

	// ShutdownTimeout is the time to wait for graceful shutdown.
	// If 0, uses value from broker.yaml or default (30s).
	ShutdownTimeout time.Duration

	// HeartbeatInterval is the interval between health heartbeats.
	// If 0, uses value from broker.yaml or default (10s).
	HeartbeatInterval time.Duration

	// Logger is the structured logger for worker operations.
	// If nil, a default logger will be created.
	Logger *slog.Logger

	// Config is the parsed broker.yaml configuration.
	// If nil, the worker will attempt to load it from the current directory.
	Config *config.Config

	// ConfigPath is the path to broker.yaml.
	// If empty and Config is nil, searches from current directory.
	ConfigPath string
}

// Run starts the worker loop for the given tool with the specified options.
// It connects to Redis, registers the tool, starts N worker goroutines based
// on Concurrency, maintains a heartbeat, and handles graceful shutdown on
// SIGTERM/SIGINT.
//
// Configuration priority (highest to lowest):
//  1. Explicit Options values (if non-zero)
//  2. broker.yaml worker section
//  3. Default values
//
// Each worker goroutine:
//  1. Pops an invocation from the tool's queue
//  2. Validates the arguments against the tool's schema
//  3. Executes the tool within its resolved timeout
//  4. Publishes the outcome to the invocation's correlation channel
//
// The function blocks until a shutdown signal is received or an error occurs.
// On shutdown, it waits for all workers to finish processing their current
// invocations before returning.
//
// Returns an error if the Redis connection or tool registration fails.
func Run(t tool.Tool, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if opts.ConfigPath != "" {
			cfg, err = config.Load(opts.ConfigPath)
		} else {
			cfg, err = config.LoadFromCurrentDir()
		}
		if err != nil {
			// broker.yaml is optional, fall through to defaults
			cfg = nil
		}
	}

	opts = applyConfig(opts, cfg)

	if opts.RedisURL == "" {
		opts.RedisURL = "redis://localhost:6379"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	workerID := generateWorkerID()

	logger := opts.Logger.With(
		"tool", t.Name(),
		"version", t.Version(),
		"worker_id", workerID,
	)

	logger.Info("worker starting",
		"concurrency", opts.Concurrency,
		"redis_url", opts.RedisURL,
	)

	client, err := queue.NewRedisClient(queue.RedisOptions{
		URL: opts.RedisURL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registerTool(ctx, client, t, logger); err != nil {
		return err
	}

	if err := client.IncrementWorkerCount(ctx, t.Name()); err != nil {
		logger.Error("failed to increment worker count", "error", err)
	}

	// Decrement on exit even when ctx is already cancelled
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if err := client.DecrementWorkerCount(cleanupCtx, t.Name()); err != nil {
			logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go runHeartbeat(heartbeatCtx, client, t.Name(), opts.HeartbeatInterval, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			workerLoop(ctx, workerNum, t, client, workerID, logger)
		}(i)
	}

	logger.Info("worker started", "workers", opts.Concurrency)

	sig := <-sigChan
	logger.Info("received signal, initiating graceful shutdown", "signal", sig)

	cancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logger.Info("worker shutdown complete")
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
	}

	return nil
}

// registerTool publishes the tool's metadata, including its serialized
// argument schema, so brokers can discover it.
func registerTool(ctx context.Context, client queue.Client, t tool.Tool, logger *slog.Logger) error {
	schemaJSON, err := json.Marshal(t.InputSchema())
	if err != nil {
		return fmt.Errorf("failed to serialize input schema: %w", err)
	}

	meta := queue.ToolMeta{
		Name:        t.Name(),
		Version:     t.Version(),
		Description: t.Description(),
		SchemaJSON:  string(schemaJSON),
		Tags:        t.Tags(),
	}

	logger.Info("registering tool", "name", meta.Name, "version", meta.Version)

	if err := client.RegisterTool(ctx, meta); err != nil {
		logger.Error("failed to register tool", "error", err)
		return fmt.Errorf("failed to register tool: %w", err)
	}

	return nil
}

// runHeartbeat sends periodic heartbeats to maintain tool health status.
// It runs in a goroutine and stops when the context is cancelled.
func runHeartbeat(ctx context.Context, client queue.Client, toolName string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("heartbeat goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("heartbeat goroutine stopped")
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx, toolName); err != nil {
				// Heartbeat failures are transient, keep the noise down
				logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

// workerLoop is the main loop for a single worker goroutine.
// It continuously pops invocations from the tool's queue, processes them,
// and publishes outcomes until the context is cancelled.
func workerLoop(ctx context.Context, workerNum int, t tool.Tool, client queue.Client, workerID string, logger *slog.Logger) {
	logger = logger.With("worker_num", workerNum)
	logger.Debug("worker loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker loop stopped", "reason", "context_cancelled")
			return
		default:
		}

		inv, err := client.Pop(ctx, t.Name())
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("worker loop stopped", "reason", "context_error")
				return
			}
			logger.Error("failed to pop invocation", "error", err)
			continue
		}
		if inv == nil {
			continue
		}

		logger.Info("received invocation",
			"correlation_id", inv.CorrelationID,
			"tool", inv.Tool,
			"queue_wait_ms", inv.Age().Milliseconds(),
		)

		out := processInvocation(ctx, t, *inv, workerID, logger)

		if err := client.PublishOutcome(ctx, out); err != nil {
			logger.Error("failed to publish outcome",
				"correlation_id", out.CorrelationID,
				"error", err,
			)
		}
	}
}

// processInvocation validates and executes a single invocation.
// It handles all errors at each step and always returns an Outcome
// carrying the invocation's correlation ID.
func processInvocation(ctx context.Context, t tool.Tool, inv queue.Invocation, workerID string, logger *slog.Logger) queue.Outcome {
	out := queue.Outcome{
		CorrelationID: inv.CorrelationID,
		Tool:          inv.Tool,
		WorkerID:      workerID,
		StartedAt:     time.Now().UnixMilli(),
	}

	fail := func(kind, msg string) queue.Outcome {
		out.ErrorKind = kind
		out.Error = msg
		out.CompletedAt = time.Now().UnixMilli()
		logger.Error("invocation failed",
			"correlation_id", inv.CorrelationID,
			"error_kind", kind,
			"error", msg,
		)
		return out
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(inv.ArgumentsJSON), &args); err != nil {
		return fail(brokererr.CodeInvalidArguments, fmt.Sprintf("malformed arguments: %v", err))
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := t.InputSchema().ValidateArguments(args); err != nil {
		return fail(brokererr.CodeInvalidArguments, err.Error())
	}

	timeouts := t.Timeouts()
	requested := time.Duration(inv.TimeoutMillis) * time.Millisecond
	if requested > 0 {
		if err := timeouts.ValidateTimeout(requested); err != nil {
			return fail(brokererr.CodeInvalidArguments, err.Error())
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeouts.Resolve(requested))
	defer cancel()

	value, err := execute(execCtx, t, args)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fail(brokererr.CodeTimeout, fmt.Sprintf("execution exceeded %v", timeouts.Resolve(requested)))
		case errors.Is(err, context.Canceled):
			return fail(brokererr.CodeCancelled, "invocation cancelled")
		default:
			kind := brokererr.CodeOf(err)
			if kind == "" {
				kind = brokererr.CodeHandlerError
			}
			return fail(kind, err.Error())
		}
	}

	payload, err := tool.Render(value)
	if err != nil {
		return fail(brokererr.CodeHandlerError, err.Error())
	}

	out.OK = true
	out.Payload = payload
	out.CompletedAt = time.Now().UnixMilli()

	logger.Info("invocation completed",
		"correlation_id", inv.CorrelationID,
		"duration_ms", out.CompletedAt-out.StartedAt,
	)

	return out
}

// execute runs the tool handler, converting panics into handler errors so a
// misbehaving tool never takes the worker down.
func execute(ctx context.Context, t tool.Tool, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = brokererr.New(t.Name(), "execute", brokererr.CodeHandlerError,
				fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	return t.Execute(ctx, args)
}

// generateWorkerID creates a unique identifier for this worker instance.
// Uses hostname + PID + UUID for uniqueness.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pid := os.Getpid()
	id := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%d-%s", hostname, pid, id)
}

// applyConfig applies broker.yaml settings to Options.
// Explicit Options values take priority over broker.yaml values.
func applyConfig(opts Options, cfg *config.Config) Options {
	var wc *config.WorkerConfig
	if cfg != nil {
		wc = cfg.Worker
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = wc.GetConcurrency()
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = wc.GetShutdownTimeout()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = wc.GetHeartbeatInterval()
	}
	if opts.RedisURL == "" && cfg != nil {
		opts.RedisURL = cfg.Redis.GetURL()
	}

	return opts
}
