package linkedslice

import (
	"sync"
)

// List is a FIFO queue which is never full, and doesn't care about priority.
//
// It is the unbounded inner collection of monitor.NewFIFO, and the
// per-level storage of bucket.Queue. It is NOT goroutine-safe; its owner
// holds the lock.
//
// There are 2 pointer needed here.
//
// 1. head maintains the base of the linked list, and pop always takes from head
//
// 2. pushPointer is a pointer pointing to which node new insert should go
//
// As items are popped, head gonna go forward, and the previous one will be put back to pool.
type List[T any] struct {
	head        *internalSlice[T]
	pushPointer *internalSlice[T]
	size        int
	pool        *sync.Pool
}

// NewList creates our List struct
func NewList[T any]() *List[T] {
	return &List[T]{
		pool: &sync.Pool{
			New: func() any { return newInternalSlice[T]() },
		},
	}
}

func (ls *List[T]) getInternalSlice() *internalSlice[T] {
	return ls.pool.Get().(*internalSlice[T])
}

func (ls *List[T]) putInternalSlice(is *internalSlice[T]) {
	is.reset()
	ls.pool.Put(is)
}

func (ls *List[T]) checkHeadExist() {
	if ls.head == nil {
		ls.head = ls.getInternalSlice()
		ls.pushPointer = ls.head
	}
}

// Enqueue inserts item at the back of the list.
// As this implementation is unbounded, error is always nil.
func (ls *List[T]) Enqueue(item T) error {
	ls.checkHeadExist()
	if !ls.pushPointer.canPush() { //meaning full already
		newSlice := ls.getInternalSlice()
		ls.pushPointer.next = newSlice
		ls.pushPointer = newSlice
	}
	if err := ls.pushPointer.push(item); err != nil {
		panic("Broken implementation: push after canPush check should not fail")
	}
	ls.size++
	return nil
}

// Dequeue removes the front item.
func (ls *List[T]) Dequeue() (T, bool) {
	var zero T
	if ls.size == 0 {
		return zero, false
	}
	result, err := ls.head.pop()
	if err != nil {
		panic("Broken implementation: size says non-empty but head is empty")
	}
	ls.size--
	if ls.head.slotsUsedUp() {
		usedLS := ls.head
		ls.head = ls.head.next
		if ls.head == nil {
			ls.pushPointer = nil
		}
		ls.putInternalSlice(usedLS)
	}
	return result, true
}

// Peek returns the front item without removing it.
func (ls *List[T]) Peek() (T, bool) {
	if ls.size == 0 {
		var zero T
		return zero, false
	}
	v, _ := ls.head.peek()
	return v, true
}

// Len returns the number of items.
func (ls *List[T]) Len() int { return ls.size }

// Clear drops every item and hands the slices back to the pool.
func (ls *List[T]) Clear() {
	for is := ls.head; is != nil; {
		next := is.next
		ls.putInternalSlice(is)
		is = next
	}
	ls.head = nil
	ls.pushPointer = nil
	ls.size = 0
}
