package ordq

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aarondwi/ordq/blocking"
	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/monitor"
)

// Engine is our prioritizing engine.
// It has 2 parts: queue and worker.
//
// Worker is designed as a goroutine pool,
// in which each will take a task from the queue and do the work.
type Engine struct {
	mu     sync.Mutex
	lastID uint64
	closed bool

	q      TaskQueue
	wg     sync.WaitGroup
	logger *slog.Logger
}

// ErrNumOfWorkerIsNegativeOrZero is returned when `numOfWorker` parameter is <= 0
var ErrNumOfWorkerIsNegativeOrZero = errors.New("ordq: number of workers should be positive")

// ErrCtxAlreadyCancelled is returned when task.ctx taken by worker is already done
var ErrCtxAlreadyCancelled = errors.New("ordq: context is already cancelled when it is gonna be taken")

// ErrAlreadyClosed is returned when `Submit()` is called after `Close()`
var ErrAlreadyClosed = errors.New("ordq: engine is already closed")

// ErrTaskPanicked wraps a panic recovered from a TaskFunc.
var ErrTaskPanicked = errors.New("ordq: task panicked")

// New creates our new prioritization engine over a blocking.Queue
// in which a higher priority number is run first.
//
// opts configure that queue; common.WithMaxSize bounds it, making Submit
// wait while it is full.
func New(numOfWorker int, opts ...common.Option) (*Engine, error) {
	if numOfWorker <= 0 {
		return nil, ErrNumOfWorkerIsNegativeOrZero
	}
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	q, err := blocking.New[int, *Task](common.Reverse(cmp.Compare[int]), opts...)
	if err != nil {
		return nil, err
	}
	return NewWithQueue(q, numOfWorker, common.WithLogger(cfg.Logger))
}

// NewWithQueue creates an engine taking tasks from q.
// Only the logger of opts is used.
func NewWithQueue(q TaskQueue, numOfWorker int, opts ...common.Option) (*Engine, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil queue", common.ErrInvalidArgument)
	}
	if numOfWorker <= 0 {
		return nil, ErrNumOfWorkerIsNegativeOrZero
	}
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{q: q, logger: cfg.Logger}
	for i := 0; i < numOfWorker; i++ {
		e.wg.Add(1)
		go e.workLoop()
	}
	e.logger.Debug("engine started", slog.Int("workers", numOfWorker))
	return e, nil
}

func (e *Engine) workLoop() {
	defer e.wg.Done()
	for {
		// returns false only once closed and drained
		task, ok := e.q.TryDequeue(monitor.Block)
		if !ok {
			return
		}
		e.run(task)
	}
}

func (e *Engine) run(task *Task) {
	select {
	case <-task.ctx.Done():
		// fast path
		// already timeout/done, skip with error
		task.set(nil, ErrCtxAlreadyCancelled)
		return
	default:
	}

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("task panicked",
					slog.Uint64("task_id", task.id),
					slog.Int("priority", task.priority),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				result, err = nil, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		result, err = task.fn(task.ctx, task.arg)
	}()
	task.set(result, err)
}

// Submit creates task to be done in the worker goroutine.
// It waits while a bounded queue is full.
//
// The callee can call `.Result()` call to wait for result and error returned by fn
func (e *Engine) Submit(ctx context.Context, priority int, fn TaskFunc, arg any) (*Task, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil task func", common.ErrInvalidArgument)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrAlreadyClosed
	}
	e.lastID++
	task := newTask(ctx, e.lastID, priority, fn, arg)
	e.mu.Unlock()

	if err := e.q.Enqueue(priority, task); err != nil {
		if errors.Is(err, common.ErrQueueIsClosed) {
			return nil, ErrAlreadyClosed
		}
		return nil, err
	}
	return task, nil
}

// Pending returns the number of tasks waiting for a worker.
func (e *Engine) Pending() int { return e.q.Count() }

// Close the instance, rejecting subsequent Submit calls.
//
// Tasks already queued are still run; Close returns once every worker
// has finished them and exited.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.q.Close()
	e.wg.Wait()
	e.logger.Debug("engine closed")
}
