package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/broker/brokererr"
	"github.com/toolmesh/broker/config"
	"github.com/toolmesh/broker/queue"
	"github.com/toolmesh/broker/schema"
	"github.com/toolmesh/broker/tool"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setupTestClient(t *testing.T) *queue.RedisClient {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := queue.NewRedisClient(queue.RedisOptions{
		URL: fmt.Sprintf("redis://%s", mr.Addr()),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client
}

func alertsTool(t *testing.T, fn tool.ExecuteFunc) tool.Tool {
	t.Helper()

	if fn == nil {
		fn = func(ctx context.Context, args map[string]any) (any, error) {
			return "No active alerts for this state.", nil
		}
	}

	tl, err := tool.New(tool.NewConfig().
		SetName("get_alerts").
		SetDescription("Get weather alerts for a US state").
		SetTags([]string{"weather"}).
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"state": schema.StringWithDesc("Two-letter US state code"),
		}, "state")).
		SetExecuteFunc(fn))
	require.NoError(t, err)
	return tl
}

func invocation(corrID, argsJSON string) queue.Invocation {
	return queue.Invocation{
		CorrelationID: corrID,
		Tool:          "get_alerts",
		ArgumentsJSON: argsJSON,
		SubmittedAt:   time.Now().UnixMilli(),
	}
}

func TestProcessInvocationSuccess(t *testing.T) {
	tl := alertsTool(t, nil)

	out := processInvocation(context.Background(), tl, invocation("c1", `{"state":"NY"}`), "w1", discardLogger())

	assert.True(t, out.OK)
	assert.Equal(t, "c1", out.CorrelationID)
	assert.Equal(t, "get_alerts", out.Tool)
	assert.Equal(t, "No active alerts for this state.", out.Payload)
	assert.Equal(t, "w1", out.WorkerID)
	assert.Empty(t, out.ErrorKind)
	assert.GreaterOrEqual(t, out.CompletedAt, out.StartedAt)
}

func TestProcessInvocationMalformedArguments(t *testing.T) {
	tl := alertsTool(t, nil)

	out := processInvocation(context.Background(), tl, invocation("c2", `{not json`), "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeInvalidArguments, out.ErrorKind)
	assert.Contains(t, out.Error, "malformed arguments")
}

func TestProcessInvocationSchemaViolation(t *testing.T) {
	tl := alertsTool(t, nil)

	out := processInvocation(context.Background(), tl, invocation("c3", `{}`), "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeInvalidArguments, out.ErrorKind)
	assert.Contains(t, out.Error, "state")
}

func TestProcessInvocationHandlerError(t *testing.T) {
	tl := alertsTool(t, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("upstream returned 503")
	})

	out := processInvocation(context.Background(), tl, invocation("c4", `{"state":"NY"}`), "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeHandlerError, out.ErrorKind)
	assert.Contains(t, out.Error, "upstream returned 503")
}

func TestProcessInvocationHandlerPanic(t *testing.T) {
	tl := alertsTool(t, func(ctx context.Context, args map[string]any) (any, error) {
		panic("boom")
	})

	out := processInvocation(context.Background(), tl, invocation("c5", `{"state":"NY"}`), "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeHandlerError, out.ErrorKind)
	assert.Contains(t, out.Error, "panicked")
}

func TestProcessInvocationPreservesErrorCode(t *testing.T) {
	tl := alertsTool(t, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, brokererr.New("get_alerts", "execute", brokererr.CodeUpstreamUnavailable, "weather API unreachable")
	})

	out := processInvocation(context.Background(), tl, invocation("c6", `{"state":"NY"}`), "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeUpstreamUnavailable, out.ErrorKind)
}

func TestProcessInvocationTimeout(t *testing.T) {
	tl := alertsTool(t, func(ctx context.Context, args map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})

	inv := invocation("c7", `{"state":"NY"}`)
	inv.TimeoutMillis = 20

	out := processInvocation(context.Background(), tl, inv, "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeTimeout, out.ErrorKind)
}

func TestProcessInvocationTimeoutOutOfBounds(t *testing.T) {
	tl, err := tool.New(tool.NewConfig().
		SetName("get_alerts").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"state": schema.String(),
		}, "state")).
		SetTimeouts(tool.TimeoutConfig{Default: time.Second, Max: 2 * time.Second}).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		}))
	require.NoError(t, err)

	inv := invocation("c8", `{"state":"NY"}`)
	inv.TimeoutMillis = (10 * time.Second).Milliseconds()

	out := processInvocation(context.Background(), tl, inv, "w1", discardLogger())

	assert.False(t, out.OK)
	assert.Equal(t, brokererr.CodeInvalidArguments, out.ErrorKind)
	assert.Contains(t, out.Error, "exceeds maximum")
}

func TestWorkerLoopProcessesQueue(t *testing.T) {
	client := setupTestClient(t)
	tl := alertsTool(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomes, err := client.SubscribeOutcome(ctx, "loop-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		workerLoop(ctx, 0, tl, client, "w1", discardLogger())
	}()

	require.NoError(t, client.Push(ctx, invocation("loop-1", `{"state":"NY"}`)))

	select {
	case out := <-outcomes:
		assert.True(t, out.OK)
		assert.Equal(t, "loop-1", out.CorrelationID)
		assert.Equal(t, "No active alerts for this state.", out.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	cancel()
	wg.Wait()
}

func TestWorkerLoopStopsOnCancel(t *testing.T) {
	client := setupTestClient(t)
	tl := alertsTool(t, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		workerLoop(ctx, 0, tl, client, "w1", discardLogger())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker loop did not stop after cancel")
	}
}

func TestRegisterToolPublishesSchema(t *testing.T) {
	client := setupTestClient(t)
	tl := alertsTool(t, nil)

	require.NoError(t, registerTool(context.Background(), client, tl, discardLogger()))

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)

	assert.Equal(t, "get_alerts", tools[0].Name)
	assert.Contains(t, tools[0].SchemaJSON, `"state"`)
	assert.Equal(t, []string{"weather"}, tools[0].Tags)
}

func TestApplyConfig(t *testing.T) {
	t.Run("defaults when no config", func(t *testing.T) {
		opts := applyConfig(Options{}, nil)
		assert.Equal(t, 4, opts.Concurrency)
		assert.Equal(t, 30*time.Second, opts.ShutdownTimeout)
		assert.Equal(t, 10*time.Second, opts.HeartbeatInterval)
	})

	t.Run("config fills unset options", func(t *testing.T) {
		cfg := &config.Config{
			Worker: &config.WorkerConfig{Concurrency: 8, ShutdownTimeout: "1m"},
			Redis:  &config.RedisConfig{URL: "redis://queue.internal:6379"},
		}
		opts := applyConfig(Options{}, cfg)
		assert.Equal(t, 8, opts.Concurrency)
		assert.Equal(t, time.Minute, opts.ShutdownTimeout)
		assert.Equal(t, "redis://queue.internal:6379", opts.RedisURL)
	})

	t.Run("explicit options win", func(t *testing.T) {
		cfg := &config.Config{
			Worker: &config.WorkerConfig{Concurrency: 8},
		}
		opts := applyConfig(Options{Concurrency: 2, RedisURL: "redis://other:6379"}, cfg)
		assert.Equal(t, 2, opts.Concurrency)
		assert.Equal(t, "redis://other:6379", opts.RedisURL)
	})
}

func TestGenerateWorkerID(t *testing.T) {
	a := generateWorkerID()
	b := generateWorkerID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
