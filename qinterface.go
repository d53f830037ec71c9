package ordq

import "github.com/aarondwi/ordq/monitor"

// TaskQueue is the queue the Engine's workers take tasks from.
// blocking.Queue[int, *Task] implements it; build one over a
// bucket.Queue with blocking.NewWithCollection for a different order.
//
// Enqueue may wait when the queue is bounded, so Submit applies
// backpressure. TryDequeue is always called with monitor.Block, and must
// report false once the queue is closed and drained.
//
// Those implementing this interface should be goroutine-safe.
type TaskQueue interface {
	Enqueue(priority int, t *Task) error
	TryDequeue(mode monitor.WaitMode) (*Task, bool)
	Count() int
	Close()
}
