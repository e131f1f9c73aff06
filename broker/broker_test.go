package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/toolmesh/broker/brokererr"
	"github.com/toolmesh/broker/registry"
	"github.com/toolmesh/broker/schema"
	"github.com/toolmesh/broker/tool"
)

// newWeatherRegistry builds a registry with the get_alerts and
// get_forecast shapes used across the broker tests.
func newWeatherRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	alerts, err := tool.New(tool.NewConfig().
		SetName("get_alerts").
		SetDescription("Get weather alerts for a US state").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"state": schema.StringWithDesc("Two-letter US state code"),
		}, "state")).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return "No active alerts for this state.", nil
		}))
	require.NoError(t, err)

	forecast, err := tool.New(tool.NewConfig().
		SetName("get_forecast").
		SetDescription("Get forecast for coordinates").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"latitude":  schema.Number(),
			"longitude": schema.Number(),
		}, "latitude", "longitude")).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"periods": 1}, nil
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.RegisterAll(alerts, forecast))
	return reg
}

func newTestBroker(t *testing.T, reg *registry.Registry, opts ...Option) *Broker {
	t.Helper()
	b, err := New(reg, opts...)
	require.NoError(t, err)
	return b
}

func TestNewNilRegistry(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestListTools(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	descriptors := b.ListTools()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "get_alerts", descriptors[0].Name)
	assert.Equal(t, "get_forecast", descriptors[1].Name)
}

func TestInvokeSuccess(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "c1",
		Tool:          "get_alerts",
		Arguments:     map[string]any{"state": "NY"},
	})

	assert.Equal(t, "c1", res.CorrelationID)
	assert.True(t, res.OK)
	assert.Equal(t, "No active alerts for this state.", res.Payload)
	assert.Empty(t, res.ErrorKind)
	assert.NoError(t, res.Err)
}

func TestInvokeUnknownTool(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "c3",
		Tool:          "nonexistent_tool",
		Arguments:     map[string]any{},
	})

	assert.Equal(t, "c3", res.CorrelationID)
	assert.False(t, res.OK)
	assert.Equal(t, brokererr.CodeUnknownTool, res.ErrorKind)
}

func TestInvokeMissingRequiredParameter(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "c4",
		Tool:          "get_alerts",
		Arguments:     map[string]any{},
	})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeInvalidArguments, res.ErrorKind)

	var be *brokererr.Error
	require.True(t, errors.As(res.Err, &be))
	assert.Equal(t, "state", be.Parameter)
}

func TestInvokeWrongTypeParameter(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "c2",
		Tool:          "get_forecast",
		Arguments: map[string]any{
			"latitude":  "not-a-number",
			"longitude": -73.9,
		},
	})

	assert.Equal(t, "c2", res.CorrelationID)
	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeInvalidArguments, res.ErrorKind)

	var be *brokererr.Error
	require.True(t, errors.As(res.Err, &be))
	assert.Equal(t, "latitude", be.Parameter)
}

func TestInvokeAssignsCorrelationID(t *testing.T) {
	b := newTestBroker(t, newWeatherRegistry(t))

	res := b.Invoke(context.Background(), Request{
		Tool:      "get_alerts",
		Arguments: map[string]any{"state": "CA"},
	})

	assert.True(t, res.OK)
	assert.NotEmpty(t, res.CorrelationID)
}

func TestInvokeHandlerError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	failing, err := tool.New(tool.NewConfig().
		SetName("failing").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return nil, cause
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(failing))
	b := newTestBroker(t, reg)

	res := b.Invoke(context.Background(), Request{CorrelationID: "c5", Tool: "failing"})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeHandlerError, res.ErrorKind)
	assert.True(t, errors.Is(res.Err, cause), "cause must be preserved in the chain")
}

func TestInvokeHandlerPanic(t *testing.T) {
	panicking, err := tool.New(tool.NewConfig().
		SetName("panicking").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			panic("boom")
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(panicking))
	b := newTestBroker(t, reg)

	res := b.Invoke(context.Background(), Request{CorrelationID: "c6", Tool: "panicking"})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeHandlerError, res.ErrorKind)
	assert.Contains(t, res.ErrorMessage, "panicked")
}

func TestInvokeTimeout(t *testing.T) {
	completed := make(chan struct{})
	slow, err := tool.New(tool.NewConfig().
		SetName("slow").
		SetTimeouts(tool.TimeoutConfig{Default: 50 * time.Millisecond}).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			// Ignores cancellation on purpose; the broker must still
			// fail the invocation and drop the late completion.
			time.Sleep(200 * time.Millisecond)
			close(completed)
			return "late result", nil
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(slow))
	b := newTestBroker(t, reg)

	res := b.Invoke(context.Background(), Request{CorrelationID: "c7", Tool: "slow"})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeTimeout, res.ErrorKind)
	assert.Empty(t, res.Payload)

	// The late completion must never surface: the handler finishes after
	// the timeout but the already-returned result stays the failure.
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("handler never completed")
	}
	assert.Equal(t, brokererr.CodeTimeout, res.ErrorKind)
	assert.Empty(t, res.Payload)
}

func TestInvokeTimeoutOverride(t *testing.T) {
	slow, err := tool.New(tool.NewConfig().
		SetName("slow").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(slow))
	b := newTestBroker(t, reg)

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "c8",
		Tool:          "slow",
		Timeout:       20 * time.Millisecond,
	})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeTimeout, res.ErrorKind)
}

func TestInvokeCancellation(t *testing.T) {
	started := make(chan struct{})
	blocking, err := tool.New(tool.NewConfig().
		SetName("blocking").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(blocking))
	b := newTestBroker(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res := b.Invoke(ctx, Request{CorrelationID: "c9", Tool: "blocking"})

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeCancelled, res.ErrorKind)
}

func TestInvokeConcurrentNoCrossDelivery(t *testing.T) {
	echo, err := tool.New(tool.NewConfig().
		SetName("echo").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"value": schema.String(),
		}, "value")).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			// Vary completion order across goroutines
			time.Sleep(time.Duration(len(args["value"].(string))) * time.Millisecond)
			return args["value"], nil
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(echo))
	b := newTestBroker(t, reg)

	const n = 16
	var wg sync.WaitGroup
	results := make([]Result, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			corrID := fmt.Sprintf("corr-%d", i)
			results[i] = b.Invoke(context.Background(), Request{
				CorrelationID: corrID,
				Tool:          "echo",
				Arguments:     map[string]any{"value": corrID},
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		corrID := fmt.Sprintf("corr-%d", i)
		require.True(t, results[i].OK)
		assert.Equal(t, corrID, results[i].CorrelationID)
		assert.Equal(t, corrID, results[i].Payload,
			"result for %s must carry its own payload", corrID)
	}
}

func TestInvokeMaxInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking, err := tool.New(tool.NewConfig().
		SetName("blocking").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			started <- struct{}{}
			<-release
			return "done", nil
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(blocking))
	b := newTestBroker(t, reg, WithMaxInFlight(1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Invoke(context.Background(), Request{CorrelationID: "held", Tool: "blocking"})
	}()

	<-started
	res := b.Invoke(context.Background(), Request{CorrelationID: "rejected", Tool: "blocking"})
	close(release)
	wg.Wait()

	require.False(t, res.OK)
	assert.Equal(t, brokererr.CodeQueueFull, res.ErrorKind)
}

func TestInvokePayloadRendering(t *testing.T) {
	structured, err := tool.New(tool.NewConfig().
		SetName("structured").
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"b": 2, "a": 1}, nil
		}))
	require.NoError(t, err)

	reg := registry.New(nil)
	require.NoError(t, reg.Register(structured))
	b := newTestBroker(t, reg)

	first := b.Invoke(context.Background(), Request{CorrelationID: "p1", Tool: "structured"})
	second := b.Invoke(context.Background(), Request{CorrelationID: "p2", Tool: "structured"})

	require.True(t, first.OK)
	require.True(t, second.OK)
	assert.Equal(t, `{"a":1,"b":2}`, first.Payload)
	assert.Equal(t, first.Payload, second.Payload, "rendering must be deterministic")
}

func TestInvokeRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newTestBroker(t, newWeatherRegistry(t), WithTracer(tp.Tracer("broker-test")))

	res := b.Invoke(context.Background(), Request{
		CorrelationID: "span-1",
		Tool:          "get_alerts",
		Arguments:     map[string]any{"state": "NY"},
	})
	require.True(t, res.OK)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "broker.invoke", spans[0].Name())
}

