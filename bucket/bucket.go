// Package bucket provides a priority collection over a small, fixed range of
// integer priorities.
//
// It is not designed using heap: as the number of priorities is bounded,
// keeping one FIFO per priority avoids the compare-and-swap nature of a heap
// and keeps items of equal priority in arrival order.
package bucket

import (
	"fmt"

	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/linkedslice"
)

// Discipline decides which level is served next.
type Discipline int

const (
	// Strict always serves the lowest non-empty level first.
	Strict Discipline = iota
	// RoundRobin serves one item per non-empty level, walking upwards
	// from the level of the first item and wrapping around.
	//
	// This gives lower priorities some starvation prevention, assuming
	// urgent items are the minority, else it behaves like a plain FIFO.
	RoundRobin
)

func (d Discipline) String() string {
	switch d {
	case Strict:
		return "strict"
	case RoundRobin:
		return "round-robin"
	default:
		return fmt.Sprintf("Discipline(%d)", int(d))
	}
}

// Queue holds items at priorities [0, levels).
//
// It implements monitor.Collection[common.Item[int, V]], and like every
// collection it is NOT goroutine-safe: wrap it in a monitor (see
// blocking.NewWithCollection) for concurrent use.
type Queue[V any] struct {
	// we separate number tracking from the levels
	// so finding the next non-empty level only touches one small slice
	counts []int

	// levels are created lazily, on first push into them
	levels []*linkedslice.List[common.Item[int, V]]

	discipline Discipline
	size       int

	// cursor is the level served by the next Dequeue, -1 when empty
	cursor int
}

// New creates a Queue accepting priorities [0, levels).
func New[V any](levels int, discipline Discipline) (*Queue[V], error) {
	if levels <= 0 {
		return nil, fmt.Errorf("%w: levels must be positive, got %d", common.ErrInvalidArgument, levels)
	}
	if discipline != Strict && discipline != RoundRobin {
		return nil, fmt.Errorf("%w: unknown discipline %v", common.ErrInvalidArgument, discipline)
	}
	return &Queue[V]{
		counts:     make([]int, levels),
		levels:     make([]*linkedslice.List[common.Item[int, V]], levels),
		discipline: discipline,
		cursor:     -1,
	}, nil
}

// Levels returns the number of priorities accepted.
func (q *Queue[V]) Levels() int { return len(q.levels) }

// Discipline returns the serving discipline.
func (q *Queue[V]) Discipline() Discipline { return q.discipline }

// Len returns the number of items held.
func (q *Queue[V]) Len() int { return q.size }

// LenAt returns the number of items held at priority.
func (q *Queue[V]) LenAt(priority int) int {
	if priority < 0 || priority >= len(q.counts) {
		return 0
	}
	return q.counts[priority]
}

// Enqueue puts item at the back of its level.
func (q *Queue[V]) Enqueue(item common.Item[int, V]) error {
	p := item.Priority
	if p < 0 || p >= len(q.levels) {
		return fmt.Errorf("%w: %d not in [0, %d)", common.ErrPriorityOutOfRange, p, len(q.levels))
	}
	if q.levels[p] == nil {
		q.levels[p] = linkedslice.NewList[common.Item[int, V]]()
	}
	// linkedslice is unbounded, it never fails
	_ = q.levels[p].Enqueue(item)

	switch {
	case q.size == 0:
		// the only item in the queue, serve it next
		q.cursor = p
	case q.discipline == Strict && p < q.cursor:
		q.cursor = p
	}
	q.counts[p]++
	q.size++
	return nil
}

// Dequeue removes the item chosen by the discipline.
func (q *Queue[V]) Dequeue() (common.Item[int, V], bool) {
	if q.size == 0 {
		var zero common.Item[int, V]
		return zero, false
	}

	// we are tracking counts manually, the level at cursor is never empty
	item, ok := q.levels[q.cursor].Dequeue()
	if !ok {
		panic("Broken implementation: count says non-empty but level is empty")
	}
	q.counts[q.cursor]--
	q.size--

	if q.size == 0 {
		// fast path, no need to check counts
		q.cursor = -1
	} else {
		q.cursor = q.next()
	}
	return item, true
}

// Peek returns the item the next Dequeue would remove.
func (q *Queue[V]) Peek() (common.Item[int, V], bool) {
	if q.size == 0 {
		var zero common.Item[int, V]
		return zero, false
	}
	return q.levels[q.cursor].Peek()
}

// Clear drops every item, keeping the levels for reuse.
func (q *Queue[V]) Clear() {
	for _, l := range q.levels {
		if l != nil {
			l.Clear()
		}
	}
	clear(q.counts)
	q.size = 0
	q.cursor = -1
}

// next finds the level to serve after the one at cursor was served.
// Must only be called when the queue still holds items.
func (q *Queue[V]) next() int {
	if q.discipline == Strict {
		// every level below cursor is empty, so keep going up
		for i := q.cursor; i < len(q.counts); i++ {
			if q.counts[i] > 0 {
				return i
			}
		}
		panic("Broken implementation: size says non-empty but no level has items")
	}

	// remaining items may reside on higher levels, then wrap to the lowest.
	// cursor itself is the last one checked
	n := len(q.counts)
	for step := 1; step <= n; step++ {
		i := (q.cursor + step) % n
		if q.counts[i] > 0 {
			return i
		}
	}
	panic("Broken implementation: size says non-empty but no level has items")
}
