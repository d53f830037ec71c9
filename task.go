package ordq

import (
	"context"
)

// TaskFunc is our interface, to be implemented by user
type TaskFunc func(ctx context.Context, arg any) (any, error)

// Task is the main object the Engine schedules.
// It is basically a `promise` implementation.
type Task struct {
	id       uint64
	ctx      context.Context
	priority int
	fn       TaskFunc
	arg      any

	done   chan struct{}
	result any
	err    error
}

// newTask creates a Task object with the given parameter
func newTask(ctx context.Context, id uint64, priority int, fn TaskFunc, arg any) *Task {
	return &Task{
		id:       id,
		ctx:      ctx,
		priority: priority,
		fn:       fn,
		arg:      arg,
		done:     make(chan struct{}),
	}
}

// set must be called exactly once
func (t *Task) set(result any, err error) {
	t.result = result
	t.err = err
	close(t.done)
}

// ID returns the sequence number given by Submit.
func (t *Task) ID() uint64 { return t.id }

// Priority returns the priority the task was submitted with.
func (t *Task) Priority() int { return t.priority }

// Done is closed once the task has a result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result waits until the Task object completes
func (t *Task) Result() (any, error) {
	<-t.done
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

// ResultContext is Result that stops waiting when ctx is done.
// The task itself keeps going.
func (t *Task) ResultContext(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
