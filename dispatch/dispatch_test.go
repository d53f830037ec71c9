package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aarondwi/ordq/async"
	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/dispatch"
)

type collector struct {
	mu  sync.Mutex
	got []string
}

func (c *collector) handle(_ context.Context, v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, v)
	return nil
}

func (c *collector) values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 3, "third"))
	require.NoError(t, q.Enqueue(ctx, 1, "first"))
	require.NoError(t, q.Enqueue(ctx, 2, "second"))
	q.Close()

	c := &collector{}
	d, err := dispatch.New(q, c.handle, dispatch.WithName("orders"))
	require.NoError(t, err)
	assert.Equal(t, "orders", d.Name())

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx), "starting twice is a no-op")
	require.NoError(t, d.Wait())

	assert.Equal(t, []string{"first", "second", "third"}, c.values())
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherRestartsAfterDrain(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)
	ctx := context.Background()

	c := &collector{}
	d, err := dispatch.New(q, c.handle)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, 1, "first cycle"))
	q.Close()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Wait())

	q.Open()
	require.NoError(t, q.Enqueue(ctx, 1, "second cycle"))
	q.Close()
	require.NoError(t, d.Start(ctx), "the worker exited, so Start launches a new one")
	require.NoError(t, d.Wait())

	assert.Equal(t, []string{"first cycle", "second cycle"}, c.values())
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherValidation(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)

	_, err = dispatch.New[int, string](nil, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = dispatch.New(q, nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = dispatch.New(q, (&collector{}).handle, dispatch.WithLogger(nil))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = dispatch.New(q, (&collector{}).handle, dispatch.WithTracer(nil))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestDispatcherStopKeepsQueued(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d, err := dispatch.New(q, func(context.Context, string) error {
		started <- struct{}{}
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	require.NoError(t, q.Enqueue(ctx, 1, "busy"))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("It should have started handling, but it timed out")
	}
	require.NoError(t, q.Enqueue(ctx, 2, "waiting"))

	stopped := make(chan error, 1)
	go func() { stopped <- d.Stop(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("It should stop once the handler returns, but it timed out")
	}
	assert.Equal(t, 1, q.Count(), "values not yet read stay queued")
	require.NoError(t, d.Stop(ctx), "stopping twice is a no-op")
}

func TestDispatcherStopTimeout(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)
	d, err := dispatch.New(q, func(context.Context, string) error {
		<-block
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, q.Enqueue(context.Background(), 1, "stuck"))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
}

func TestDispatcherSurvivesErrorsAndPanics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 1, "ok"))
	require.NoError(t, q.Enqueue(ctx, 2, "fail"))
	require.NoError(t, q.Enqueue(ctx, 3, "panic"))
	require.NoError(t, q.Enqueue(ctx, 4, "ok-again"))
	q.Close()

	var handled []string
	d, err := dispatch.New(q, func(_ context.Context, v string) error {
		handled = append(handled, v)
		switch v {
		case "fail":
			return errors.New("boom")
		case "panic":
			panic("kaboom")
		}
		return nil
	},
		dispatch.WithMeter(mp.Meter("test")),
		dispatch.WithTracer(tp.Tracer("test")),
	)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Wait())

	assert.Equal(t, []string{"ok", "fail", "panic", "ok-again"}, handled)

	spans := sr.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "ordq.dispatch.handle", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[2].Status().Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	byStatus := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "ordq.dispatch.handled" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value("status")
				byStatus[status.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), byStatus["ok"])
	assert.Equal(t, int64(2), byStatus["error"])
}

func TestDispatcherRateLimit(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(ctx, i, "v"))
	}
	q.Close()

	c := &collector{}
	d, err := dispatch.New(q, c.handle, dispatch.WithRateLimit(50, 1))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Wait())

	assert.Len(t, c.values(), 4)
	// 3 waits of 20ms each between the 4 values
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDispatcherStartContextCancel(t *testing.T) {
	q, err := async.NewOrdered[int, string]()
	require.NoError(t, err)

	d, err := dispatch.New(q, (&collector{}).handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()

	done := make(chan error, 1)
	go func() { done <- d.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("It should exit once its context is cancelled, but it timed out")
	}
}
