package common

import "errors"

var (
	// ErrEmptyCollection is returned when peeking or removing from an empty collection.
	ErrEmptyCollection = errors.New("ordq: collection is empty")

	// ErrInvalidArgument is returned for structural misuse,
	// e.g. negative capacity, a max size that is neither -1 nor positive,
	// or a missing comparer/collection.
	ErrInvalidArgument = errors.New("ordq: invalid argument")

	// ErrQueueIsClosed is returned when the queue does not accept new items,
	// or when a blocking dequeue found the queue closed and empty.
	ErrQueueIsClosed = errors.New("ordq: queue is closed")

	// ErrNoMoreData is returned by the async queue once it is closed
	// and every item it held has been handed out.
	ErrNoMoreData = errors.New("ordq: no more data, queue is closed")

	// ErrVersionMismatch is returned by an enumerator whose heap
	// was modified after the enumeration started.
	ErrVersionMismatch = errors.New("ordq: collection was modified during enumeration")

	// ErrPriorityOutOfRange is returned if priority given is outside of the range
	// a bucketed collection was created with.
	ErrPriorityOutOfRange = errors.New("ordq: priority out of range")
)
