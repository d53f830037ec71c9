// Package dispatch feeds the values of an async.Queue, in priority order,
// to a single handler running on one dedicated worker goroutine.
//
// Instruments (attributes: dispatcher, status "ok" or "error"):
//   - ordq.dispatch.handled (Int64Counter): handler invocations
//   - ordq.dispatch.duration (Float64Histogram): handler time in seconds
//
// Each invocation is wrapped in an "ordq.dispatch.handle" span.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aarondwi/ordq/async"
	"github.com/aarondwi/ordq/common"
)

// ErrHandlerPanic wraps a panic recovered from the handler.
var ErrHandlerPanic = errors.New("ordq: handler panicked")

// Handler processes one value. Errors are logged and counted;
// they do not stop the dispatcher.
type Handler[V any] func(ctx context.Context, v V) error

// Dispatcher is the single subscriber of an async.Queue.
type Dispatcher[P, V any] struct {
	queue   *async.Queue[P, V]
	handler Handler[V]

	name    string
	logger  *slog.Logger
	limiter *rate.Limiter
	tracer  trace.Tracer

	handled  metric.Int64Counter
	duration metric.Float64Histogram

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	done    chan struct{}
}

// New creates a dispatcher reading from q. Call Start to begin.
func New[P, V any](q *async.Queue[P, V], h Handler[V], opts ...Option) (*Dispatcher[P, V], error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil queue", common.ErrInvalidArgument)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler", common.ErrInvalidArgument)
	}
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.name == "" {
		o.name = uuid.NewString()
	}
	if o.meter == nil {
		o.meter = otel.Meter(common.MeterName)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(common.MeterName)
	}

	handled, err := o.meter.Int64Counter(
		"ordq.dispatch.handled",
		metric.WithDescription("Total number of handler invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create handled counter: %w", err)
	}
	duration, err := o.meter.Float64Histogram(
		"ordq.dispatch.duration",
		metric.WithDescription("Duration of handler invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Dispatcher[P, V]{
		queue:    q,
		handler:  h,
		name:     o.name,
		logger:   o.logger,
		limiter:  o.limiter,
		tracer:   o.tracer,
		handled:  handled,
		duration: duration,
	}, nil
}

// Name returns the dispatcher name used in logs, metrics and spans.
func (d *Dispatcher[P, V]) Name() string { return d.name }

// Start launches the worker goroutine. It returns immediately.
// Values carried by ctx reach the handler; cancelling ctx stops the worker
// the same way Stop does.
func (d *Dispatcher[P, V]) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.running = true

	wctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(wctx)
	d.cancel = cancel
	d.group = g
	d.done = make(chan struct{})

	d.logger.Info("dispatcher starting",
		slog.String("dispatcher", d.name),
		slog.String("queue", d.queue.Name()),
	)

	done := d.done
	g.Go(func() error { return d.run(gctx) })
	go func() {
		_ = g.Wait()
		cancel()
		d.mu.Lock()
		if d.done == done {
			d.running = false
		}
		d.mu.Unlock()
		close(done)
	}()
	return nil
}

// Wait blocks until the worker exits, either because the queue was closed
// and drained or because the dispatcher was stopped.
func (d *Dispatcher[P, V]) Wait() error {
	d.mu.Lock()
	g, done := d.group, d.done
	d.mu.Unlock()
	if g == nil {
		return nil
	}
	<-done
	return g.Wait()
}

// Stop cancels the worker and waits for it, at most until ctx is done.
// A value being handled is allowed to finish; values still queued stay
// in the queue.
func (d *Dispatcher[P, V]) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	d.logger.Info("dispatcher stopping", slog.String("dispatcher", d.name))
	cancel()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully", slog.String("dispatcher", d.name))
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher shutdown timed out", slog.String("dispatcher", d.name))
		return ctx.Err()
	}
}

func (d *Dispatcher[P, V]) run(ctx context.Context) error {
	defer d.logger.Debug("dispatcher worker exited", slog.String("dispatcher", d.name))

	for v, err := range d.queue.ReadAll(ctx) {
		if err != nil {
			// stopped, anything not yet read stays queued
			return nil
		}
		_ = d.handle(ctx, v)

		// pace before pulling the next value
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
	}
	return nil
}

// handle runs the handler with tracing, metrics and panic recovery.
func (d *Dispatcher[P, V]) handle(ctx context.Context, v V) (retErr error) {
	ctx, span := d.tracer.Start(ctx, "ordq.dispatch.handle",
		trace.WithAttributes(
			attribute.String("ordq.dispatcher", d.name),
			attribute.String("ordq.queue", d.queue.Name()),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				slog.String("dispatcher", d.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			retErr = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}

		status := "ok"
		if retErr != nil {
			status = "error"
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		attrs := metric.WithAttributes(
			attribute.String("dispatcher", d.name),
			attribute.String("status", status),
		)
		d.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		d.handled.Add(ctx, 1, attrs)
	}()

	if err := d.handler(ctx, v); err != nil {
		d.logger.Error("handler failed",
			slog.String("dispatcher", d.name),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}
