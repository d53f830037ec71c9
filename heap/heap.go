// Package heap provides an array-backed quaternary min-heap.
//
// Each node has up to four children, trading a few more comparisons per level
// for a much shallower tree. The heap is not goroutine-safe; the queues in
// this module guard it with their own mutex.
package heap

import (
	"cmp"
	"fmt"

	"github.com/aarondwi/ordq/common"
)

// MaxCapacity is the largest backing array the heap grows to.
const MaxCapacity = 0x7FFFFFC7

const (
	arity     = 4
	log2Arity = 2

	minimumGrow = 4
)

// Heap is a min-heap of priority/value pairs ordered by a Comparer.
//
// nodes is owned exclusively by the heap; len(nodes) is the capacity
// and only nodes[:size] hold valid items.
type Heap[P, V any] struct {
	nodes   []common.Item[P, V]
	size    int
	version uint64
	compare common.Comparer[P]
}

// New creates an empty heap ordered by compare, pre-sized to capacity.
func New[P, V any](compare common.Comparer[P], capacity int) (*Heap[P, V], error) {
	if compare == nil {
		return nil, fmt.Errorf("%w: nil comparer", common.ErrInvalidArgument)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity %d is negative", common.ErrInvalidArgument, capacity)
	}
	return &Heap[P, V]{
		nodes:   make([]common.Item[P, V], capacity),
		compare: compare,
	}, nil
}

// NewOrdered creates an empty heap over naturally ordered priorities.
func NewOrdered[P cmp.Ordered, V any]() *Heap[P, V] {
	return &Heap[P, V]{compare: cmp.Compare[P]}
}

// From builds a heap out of items in linear time.
func From[P, V any](compare common.Comparer[P], items ...common.Item[P, V]) (*Heap[P, V], error) {
	h, err := New[P, V](compare, len(items))
	if err != nil {
		return nil, err
	}
	copy(h.nodes, items)
	h.size = len(items)
	h.heapify()
	return h, nil
}

// Len returns the number of items in the heap.
func (h *Heap[P, V]) Len() int { return h.size }

// Cap returns the length of the backing array.
func (h *Heap[P, V]) Cap() int { return len(h.nodes) }

// Comparer returns the priority ordering of the heap.
func (h *Heap[P, V]) Comparer() common.Comparer[P] { return h.compare }

// Enqueue adds value with the given priority.
func (h *Heap[P, V]) Enqueue(priority P, value V) {
	size := h.size
	h.version++
	if size == len(h.nodes) {
		h.grow(size + 1)
	}
	h.size = size + 1
	h.moveUp(common.Item[P, V]{Priority: priority, Value: value}, size)
}

// Peek returns the minimal item without removing it.
func (h *Heap[P, V]) Peek() (P, V, error) {
	if h.size == 0 {
		var p P
		var v V
		return p, v, common.ErrEmptyCollection
	}
	return h.nodes[0].Priority, h.nodes[0].Value, nil
}

// TryPeek is Peek reporting emptiness as false.
func (h *Heap[P, V]) TryPeek() (P, V, bool) {
	p, v, err := h.Peek()
	return p, v, err == nil
}

// Dequeue removes and returns the minimal item.
func (h *Heap[P, V]) Dequeue() (P, V, error) {
	if h.size == 0 {
		var p P
		var v V
		return p, v, common.ErrEmptyCollection
	}
	root := h.nodes[0]
	h.removeRoot()
	return root.Priority, root.Value, nil
}

// TryDequeue is Dequeue reporting emptiness as false.
func (h *Heap[P, V]) TryDequeue() (P, V, bool) {
	p, v, err := h.Dequeue()
	return p, v, err == nil
}

// DequeueEnqueue removes the minimal item and adds the new one in a single pass.
// It returns the removed value.
func (h *Heap[P, V]) DequeueEnqueue(priority P, value V) (V, error) {
	if h.size == 0 {
		var v V
		return v, common.ErrEmptyCollection
	}
	root := h.nodes[0]
	node := common.Item[P, V]{Priority: priority, Value: value}
	if h.compare(priority, root.Priority) > 0 {
		h.moveDown(node, 0)
	} else {
		h.nodes[0] = node
	}
	h.version++
	return root.Value, nil
}

// EnqueueDequeue adds the new item and removes the minimal one in a single pass,
// returning the removed value. When the new priority does not order after the
// current minimum, the new value is returned right away and the heap is untouched.
func (h *Heap[P, V]) EnqueueDequeue(priority P, value V) V {
	if h.size != 0 {
		root := h.nodes[0]
		if h.compare(priority, root.Priority) > 0 {
			h.moveDown(common.Item[P, V]{Priority: priority, Value: value}, 0)
			h.version++
			return root.Value
		}
	}
	return value
}

// EnqueueRange adds items. An empty heap is rebuilt with heapify,
// otherwise every item is inserted one by one.
func (h *Heap[P, V]) EnqueueRange(items ...common.Item[P, V]) {
	if len(items) == 0 {
		return
	}
	h.version++
	size := h.size
	if len(h.nodes)-size < len(items) {
		h.grow(size + len(items))
	}
	if size == 0 {
		copy(h.nodes, items)
		h.size = len(items)
		if h.size > 1 {
			h.heapify()
		}
		return
	}
	for _, it := range items {
		h.size = size + 1
		h.moveUp(it, size)
		size++
	}
}

// EnqueueRangeWithPriority adds every value under the same priority.
func (h *Heap[P, V]) EnqueueRangeWithPriority(priority P, values ...V) {
	items := make([]common.Item[P, V], len(values))
	for i, v := range values {
		items[i] = common.Item[P, V]{Priority: priority, Value: v}
	}
	h.EnqueueRange(items...)
}

// Clear removes every item. Entries are zeroed so they can be reclaimed.
func (h *Heap[P, V]) Clear() {
	clear(h.nodes[:h.size])
	h.size = 0
	h.version++
}

// EnsureCapacity grows the backing array to hold at least capacity items
// and returns the resulting capacity.
func (h *Heap[P, V]) EnsureCapacity(capacity int) (int, error) {
	if capacity < 0 {
		return 0, fmt.Errorf("%w: capacity %d is negative", common.ErrInvalidArgument, capacity)
	}
	if len(h.nodes) < capacity {
		h.grow(capacity)
		h.version++
	}
	return len(h.nodes), nil
}

// TrimExcess shrinks the backing array to the item count,
// unless it is already at least 90% full.
func (h *Heap[P, V]) TrimExcess() {
	threshold := int(float64(len(h.nodes)) * 0.9)
	if h.size < threshold {
		nodes := make([]common.Item[P, V], h.size)
		copy(nodes, h.nodes[:h.size])
		h.nodes = nodes
		h.version++
	}
}

// UnorderedItems returns a copy of the items in heap (not priority) order.
func (h *Heap[P, V]) UnorderedItems() []common.Item[P, V] {
	items := make([]common.Item[P, V], h.size)
	copy(items, h.nodes[:h.size])
	return items
}

func (h *Heap[P, V]) grow(minCapacity int) {
	newCapacity := 2 * len(h.nodes)
	if newCapacity > MaxCapacity || newCapacity < 0 {
		newCapacity = MaxCapacity
	}
	newCapacity = max(newCapacity, len(h.nodes)+minimumGrow)
	newCapacity = max(newCapacity, minCapacity)

	nodes := make([]common.Item[P, V], newCapacity)
	copy(nodes, h.nodes[:h.size])
	h.nodes = nodes
}

func (h *Heap[P, V]) removeRoot() {
	h.version++
	last := h.size - 1
	h.size = last
	if last > 0 {
		node := h.nodes[last]
		h.moveDown(node, 0)
	}
	var zero common.Item[P, V]
	h.nodes[last] = zero
}

func (h *Heap[P, V]) heapify() {
	lastParent := parent(h.size - 1)
	for i := lastParent; i >= 0; i-- {
		h.moveDown(h.nodes[i], i)
	}
}

func parent(index int) int { return (index - 1) >> log2Arity }

func firstChild(index int) int { return (index << log2Arity) + 1 }

// moveUp shifts ancestors down along the path and writes node once,
// at the first position where it no longer orders before its parent.
func (h *Heap[P, V]) moveUp(node common.Item[P, V], index int) {
	nodes := h.nodes
	for index > 0 {
		p := parent(index)
		if h.compare(node.Priority, nodes[p].Priority) >= 0 {
			break
		}
		nodes[index] = nodes[p]
		index = p
	}
	nodes[index] = node
}

// moveDown is the mirror of moveUp: the smallest child is lifted
// until node orders before (or equal to) every child.
func (h *Heap[P, V]) moveDown(node common.Item[P, V], index int) {
	nodes := h.nodes
	size := h.size
	for {
		i := firstChild(index)
		if i >= size {
			break
		}
		minChild := i
		last := min(i+arity, size)
		for i++; i < last; i++ {
			if h.compare(nodes[i].Priority, nodes[minChild].Priority) < 0 {
				minChild = i
			}
		}
		if h.compare(node.Priority, nodes[minChild].Priority) <= 0 {
			break
		}
		nodes[index] = nodes[minChild]
		index = minChild
	}
	nodes[index] = node
}
