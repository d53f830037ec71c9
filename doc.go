// Package ordq provides ordered, concurrency-safe delivery queues and a
// prioritizing task engine built on them.
//
// The building blocks live in sub packages:
//
//   - heap: array-backed quaternary min-heap
//   - monitor: goroutine-blocking, optionally bounded queue over any Collection
//   - blocking: monitor over a heap, dequeuing in priority order
//   - async: context-aware ordered queue that drains a hand-off buffer
//     into its heap before every decision
//   - bucket: priority collection over a small range of integer levels
//   - dispatch: single-subscriber worker fed by an async queue
//
// Engine runs submitted tasks on a goroutine pool, higher priority first:
//
//	engine, err := ordq.New(4, common.WithMaxSize(1024))
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	task, err := engine.Submit(ctx, 10, fn, arg)
//	if err != nil {
//		return err
//	}
//	result, err := task.Result()
package ordq
