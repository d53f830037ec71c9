package circular

// Ring is a growable FIFO ring buffer.
//
// It doesnt care about priority given to it, and it is NOT goroutine-safe:
// the owner (see package buffer) serializes access with its own mutex.
type Ring[T any] struct {
	arr         []T
	currentSize int
	head        int
	tail        int
}

// NewRing creates a Ring with room for n items before it first grows.
func NewRing[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	return &Ring[T]{arr: make([]T, n)}
}

// Push appends item at the head, growing the ring when it is full.
func (c *Ring[T]) Push(item T) {
	if c.isFull() {
		c.grow()
	}
	c.arr[c.head] = item
	c.head = c.getNextIndex(c.head)
	c.currentSize++
}

// Pop removes the oldest item.
func (c *Ring[T]) Pop() (T, bool) {
	var zero T
	if c.isEmpty() {
		return zero, false
	}
	result := c.arr[c.tail]
	c.arr[c.tail] = zero
	c.tail = c.getNextIndex(c.tail)
	c.currentSize--
	return result, true
}

// Peek returns the oldest item without removing it.
func (c *Ring[T]) Peek() (T, bool) {
	if c.isEmpty() {
		var zero T
		return zero, false
	}
	return c.arr[c.tail], true
}

// Len returns the number of items held.
func (c *Ring[T]) Len() int { return c.currentSize }

// Cap returns the number of slots before the next growth.
func (c *Ring[T]) Cap() int { return len(c.arr) }

// Clear drops every item, zeroing the slots they used.
func (c *Ring[T]) Clear() {
	clear(c.arr)
	c.currentSize = 0
	c.head = 0
	c.tail = 0
}

func (c *Ring[T]) getNextIndex(index int) int {
	if index == len(c.arr)-1 {
		return 0
	}
	return index + 1
}

// grow doubles the slots, unrolling the items so tail starts at 0
func (c *Ring[T]) grow() {
	arr := make([]T, 2*len(c.arr))
	n := copy(arr, c.arr[c.tail:])
	copy(arr[n:], c.arr[:c.tail])
	c.tail = 0
	c.head = c.currentSize
	c.arr = arr
}

// isFull checks whether the ring has no remaining slots
func (c *Ring[T]) isFull() bool {
	return c.currentSize == len(c.arr)
}

// isEmpty checks whether the ring holds no item
func (c *Ring[T]) isEmpty() bool {
	return c.currentSize == 0
}
