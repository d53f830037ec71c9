// Package metrics records queue traffic through OpenTelemetry.
//
// Instruments (all carry the attributes queue and kind):
//   - ordq.queue.enqueued (Int64Counter): items accepted
//   - ordq.queue.dequeued (Int64Counter): items handed to consumers
//   - ordq.queue.dropped (Int64Counter): items discarded without delivery,
//     with attribute reason ("closed" or "cleared")
//   - ordq.queue.depth (Int64UpDownCounter): items currently held
//
// If no MeterProvider is configured the global noop instruments are used.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Drop reasons.
const (
	ReasonClosed  = "closed"
	ReasonCleared = "cleared"
)

// Recorder holds the instruments of one queue.
// It is safe for concurrent use.
type Recorder struct {
	enqueued metric.Int64Counter
	dequeued metric.Int64Counter
	dropped  metric.Int64Counter
	depth    metric.Int64UpDownCounter

	attrs   metric.MeasurementOption
	closed  metric.MeasurementOption
	cleared metric.MeasurementOption
}

// New creates the instruments on meter for the queue called name.
// kind tells queue flavours apart, e.g. "blocking" or "async".
func New(meter metric.Meter, kind, name string) *Recorder {
	// On error the API returns noop instruments, so recording degrades gracefully.
	enqueued, _ := meter.Int64Counter(
		"ordq.queue.enqueued",
		metric.WithDescription("Items accepted by the queue"),
		metric.WithUnit("{item}"),
	)
	dequeued, _ := meter.Int64Counter(
		"ordq.queue.dequeued",
		metric.WithDescription("Items handed out by the queue"),
		metric.WithUnit("{item}"),
	)
	dropped, _ := meter.Int64Counter(
		"ordq.queue.dropped",
		metric.WithDescription("Items discarded without being delivered"),
		metric.WithUnit("{item}"),
	)
	depth, _ := meter.Int64UpDownCounter(
		"ordq.queue.depth",
		metric.WithDescription("Items currently held by the queue"),
		metric.WithUnit("{item}"),
	)

	base := []attribute.KeyValue{
		attribute.String("queue", name),
		attribute.String("kind", kind),
	}
	return &Recorder{
		enqueued: enqueued,
		dequeued: dequeued,
		dropped:  dropped,
		depth:    depth,
		attrs:    metric.WithAttributes(base...),
		closed:   metric.WithAttributes(append(base, attribute.String("reason", ReasonClosed))...),
		cleared:  metric.WithAttributes(append(base, attribute.String("reason", ReasonCleared))...),
	}
}

// Enqueued records n accepted items.
func (r *Recorder) Enqueued(ctx context.Context, n int) {
	r.enqueued.Add(ctx, int64(n), r.attrs)
	r.depth.Add(ctx, int64(n), r.attrs)
}

// Dequeued records n delivered items.
func (r *Recorder) Dequeued(ctx context.Context, n int) {
	r.dequeued.Add(ctx, int64(n), r.attrs)
	r.depth.Add(ctx, -int64(n), r.attrs)
}

// DroppedClosed records n items refused because the queue was closed.
// They never entered the queue, so depth is untouched.
func (r *Recorder) DroppedClosed(ctx context.Context, n int) {
	r.dropped.Add(ctx, int64(n), r.closed)
}

// Cleared records n held items thrown away by Clear or Open.
func (r *Recorder) Cleared(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	r.dropped.Add(ctx, int64(n), r.cleared)
	r.depth.Add(ctx, -int64(n), r.attrs)
}
