package heap

import "github.com/aarondwi/ordq/common"

// Enumerator walks the heap array in storage order.
// Any structural change to the heap after the enumerator was created
// stops it, and Err reports common.ErrVersionMismatch.
//
//	it := h.Enumerate()
//	for it.Next() {
//		item := it.Item()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Enumerator[P, V any] struct {
	h       *Heap[P, V]
	version uint64
	index   int
	current common.Item[P, V]
	err     error
}

// Enumerate returns an enumerator positioned before the first item.
func (h *Heap[P, V]) Enumerate() *Enumerator[P, V] {
	return &Enumerator[P, V]{h: h, version: h.version, index: -1}
}

// Next advances to the following item, reporting false at the end
// or once the heap changed underneath.
func (e *Enumerator[P, V]) Next() bool {
	if e.err != nil {
		return false
	}
	if e.version != e.h.version {
		e.err = common.ErrVersionMismatch
		var zero common.Item[P, V]
		e.current = zero
		return false
	}
	if e.index+1 >= e.h.size {
		e.index = e.h.size
		var zero common.Item[P, V]
		e.current = zero
		return false
	}
	e.index++
	e.current = e.h.nodes[e.index]
	return true
}

// Item returns the item Next moved to.
func (e *Enumerator[P, V]) Item() common.Item[P, V] { return e.current }

// Err returns common.ErrVersionMismatch if the heap was modified mid-enumeration.
func (e *Enumerator[P, V]) Err() error { return e.err }

// Reset rewinds the enumerator. It fails the same way Next does
// when the heap changed since the enumerator was created.
func (e *Enumerator[P, V]) Reset() error {
	if e.version != e.h.version {
		e.err = common.ErrVersionMismatch
		return e.err
	}
	e.index = -1
	var zero common.Item[P, V]
	e.current = zero
	return nil
}
