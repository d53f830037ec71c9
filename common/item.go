package common

// Item is a priority/value pair, the unit every ordered collection stores.
//
// It is kept small and passed by value, so the heap array stays dense
// and percolation only moves plain structs around.
type Item[P, V any] struct {
	Priority P
	Value    V
}

// NewItem pairs value with priority.
func NewItem[P, V any](priority P, value V) Item[P, V] {
	return Item[P, V]{Priority: priority, Value: value}
}

// Comparer defines a total order over priorities.
// It returns a negative number when a orders before b, zero when equal,
// and a positive number otherwise. cmp.Compare satisfies it for ordered types.
type Comparer[P any] func(a, b P) int

// Reverse returns a Comparer ordering the opposite way of c,
// turning a min-heap into a max-heap.
func Reverse[P any](c Comparer[P]) Comparer[P] {
	return func(a, b P) int { return c(b, a) }
}
