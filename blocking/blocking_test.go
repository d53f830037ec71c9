package blocking

import (
	"cmp"
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/aarondwi/ordq/bucket"
	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/monitor"
)

func TestOrderingLiteral(t *testing.T) {
	q, err := NewOrdered[int, string]()
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(3, "third"))
	require.NoError(t, q.Enqueue(1, "first"))
	require.NoError(t, q.Enqueue(2, "second"))

	for _, want := range []string{"first", "second", "third"} {
		v, ok := q.TryDequeue(monitor.Block)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestRoundTrip(t *testing.T) {
	q, err := NewOrdered[int, int](common.WithInitialCapacity(16))
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		p := rand.Intn(100)
		require.NoError(t, q.Enqueue(p, p))
	}
	assert.Equal(t, n, q.Count())

	got := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, err := q.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.True(t, sort.IntsAreSorted(got), "values must come out non-decreasing")

	_, ok := q.TryDequeue(monitor.Poll)
	assert.False(t, ok)
}

func TestCustomComparer(t *testing.T) {
	q, err := New[int, string](common.Reverse(cmp.Compare[int]))
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(1, "low"))
	require.NoError(t, q.Enqueue(9, "high"))

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, "high", v)
	v, ok := q.TryPeek(monitor.Poll)
	require.True(t, ok)
	assert.Equal(t, "high", v)
}

func TestConstructorValidation(t *testing.T) {
	_, err := New[int, int](nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = NewOrdered[int, int](common.WithMaxSize(-2))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = NewWithCollection[int, int](nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestBackpressure(t *testing.T) {
	q, err := NewOrdered[int, string](common.WithMaxSize(2))
	require.NoError(t, err)
	assert.Equal(t, 2, q.MaxSize())

	require.NoError(t, q.Enqueue(5, "five"))
	require.NoError(t, q.Enqueue(7, "seven"))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(1, "one") }()

	select {
	case <-done:
		t.Fatalf("It should block, because MaxSize is 2 and the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "five", v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("It should complete once a slot frees, but it timed out")
	}

	// the late item is orderable among the rest
	v, err = q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "one", v)
}

func TestCloseDrains(t *testing.T) {
	q, err := NewOrdered[int, int]()
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(2, 2))
	require.NoError(t, q.Enqueue(1, 1))

	q.Close()
	assert.True(t, q.IsClosed())
	assert.ErrorIs(t, q.Enqueue(0, 0), common.ErrQueueIsClosed)

	for _, want := range []int{1, 2} {
		v, ok := q.TryDequeue(monitor.Block)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok := q.TryDequeue(monitor.Block)
	assert.False(t, ok, "closed and empty returns false instead of waiting")

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, common.ErrQueueIsClosed)
}

func TestReopenKeepsContents(t *testing.T) {
	q, err := NewOrdered[int, int]()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(i, i))
	}

	q.Close()
	q.Open()
	assert.Equal(t, 5, q.Count())
	assert.False(t, q.IsClosed())
}

func TestEnqueueForceWhenFullAndClosed(t *testing.T) {
	q, err := NewOrdered[int, int](common.WithMaxSize(1))
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(5, 5))
	require.NoError(t, q.EnqueueForce(1, 1))
	q.Close()
	require.NoError(t, q.EnqueueForce(0, 0))
	assert.Equal(t, 3, q.Count())

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestDequeueContextCancel(t *testing.T) {
	q, err := NewOrdered[int, int]()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.DequeueContext(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatalf("It should return on cancel, but it timed out")
	}

	require.NoError(t, q.Enqueue(1, 1))
	assert.Equal(t, 1, q.Count(), "queue stays usable after a cancelled wait")
	v, err := q.DequeueContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestClearAndWaitUntilEmpty(t *testing.T) {
	q, err := NewOrdered[int, int](common.WithMaxSize(4))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(i, i))
	}
	require.NoError(t, q.SetMaxSize(common.Unbounded))

	done := make(chan struct{})
	go func() {
		q.WaitUntilEmpty()
		close(done)
	}()
	q.Clear()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("It should be woken by clear, but it timed out")
	}
	assert.Equal(t, 0, q.Count())
	assert.NoError(t, q.WaitUntilEmptyContext(context.Background()))
}

func TestBucketBacked(t *testing.T) {
	inner, err := bucket.New[string](4, bucket.Strict)
	require.NoError(t, err)
	q, err := NewWithCollection[int, string](inner, common.WithName("levels"))
	require.NoError(t, err)
	assert.Equal(t, "levels", q.Name())

	require.NoError(t, q.Enqueue(3, "third"))
	require.NoError(t, q.Enqueue(1, "first-a"))
	require.NoError(t, q.Enqueue(2, "second"))
	require.NoError(t, q.Enqueue(1, "first-b"))
	assert.ErrorIs(t, q.Enqueue(4, "nope"), common.ErrPriorityOutOfRange)

	// equal priorities keep arrival order with buckets
	for _, want := range []string{"first-a", "first-b", "second", "third"} {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q, err := NewOrdered[int, int](common.WithMaxSize(8))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				if err := q.Enqueue(base+i, base+i); err != nil {
					t.Errorf("It should not fail while open, but got %v", err)
					return
				}
			}
		}(p * 1000)
	}

	seen := make(chan int, 1000)
	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				v, ok := q.TryDequeue(monitor.Block)
				if !ok {
					return
				}
				seen <- v
			}
		}()
	}

	wg.Wait()
	q.Close()
	consumers.Wait()
	close(seen)

	unique := make(map[int]struct{})
	for v := range seen {
		unique[v] = struct{}{}
	}
	assert.Len(t, unique, 1000, "no item lost or duplicated")
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	q, err := NewOrdered[int, int](common.WithMeter(mp.Meter("test")), common.WithName("m"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(i, i))
	}
	_, err = q.Dequeue()
	require.NoError(t, err)
	q.Clear()
	q.Close()
	_ = q.Enqueue(9, 9)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), totals["ordq.queue.enqueued"])
	assert.Equal(t, int64(1), totals["ordq.queue.dequeued"])
	assert.Equal(t, int64(3), totals["ordq.queue.dropped"], "2 cleared + 1 refused")
	assert.Equal(t, int64(0), totals["ordq.queue.depth"])
}

func BenchmarkBlockingQueue(b *testing.B) {
	q, _ := NewOrdered[int, int]()
	for i := 0; i < b.N; i++ {
		for j := 0; j < 128; j++ {
			q.Enqueue(rand.Intn(64), j)
		}
		for j := 0; j < 128; j++ {
			q.Dequeue()
		}
	}
}
