package monitor

import (
	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/linkedslice"
)

// Collection is the inner storage a Queue guards.
// It decides the order items come out in; the Queue only adds
// blocking, bounding and closing on top of it.
//
// Implementations need not be goroutine-safe, every call is made
// with the Queue's mutex held.
type Collection[T any] interface {
	Enqueue(item T) error
	Dequeue() (T, bool)
	Peek() (T, bool)
	Len() int
	Clear()
}

// NewFIFO creates a first-in first-out Queue.
func NewFIFO[T any](opts ...common.Option) (*Queue[T], error) {
	return New[T](linkedslice.NewList[T](), opts...)
}

// NewStack creates a last-in first-out Queue.
func NewStack[T any](opts ...common.Option) (*Queue[T], error) {
	return New[T](&stack[T]{}, opts...)
}

// stack is a slice backed LIFO Collection.
type stack[T any] struct {
	items []T
}

func (s *stack[T]) Enqueue(item T) error {
	s.items = append(s.items, item)
	return nil
}

func (s *stack[T]) Dequeue() (T, bool) {
	var zero T
	n := len(s.items)
	if n == 0 {
		return zero, false
	}
	item := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return item, true
}

func (s *stack[T]) Peek() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

func (s *stack[T]) Len() int { return len(s.items) }

func (s *stack[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}
