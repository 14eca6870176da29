/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package workerpool provides a keyed task execution engine. Tasks are
// bound to a key; the key is hashed to a single worker so tasks sharing a
// key never run concurrently. For every key there is at most one task in
// flight and at most one pending task.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/hash"
	"github.com/tochemey/distro/log"
)

const (
	// Maximum number of workers supported by the pool
	maxWorkers = 1024

	defaultQueueSize = 1024
)

// WorkerPool dispatches keyed tasks onto a fixed set of workers.
type WorkerPool struct {
	numWorkers int
	queueSize  int
	logger     log.Logger
	hasher     hash.Hasher
	workers    []*worker
	mutex      sync.RWMutex
	started    atomic.Bool
	stopped    atomic.Bool
	executed   atomic.Uint64
	wg         sync.WaitGroup
}

// worker executes the tasks of the keys hashed onto it, one at a time.
type worker struct {
	pool    *WorkerPool
	queue   chan string
	mu      sync.Mutex
	pending map[string]func()
}

// New creates a new worker pool with the given options.
func New(opts ...Option) *WorkerPool {
	wp := &WorkerPool{
		numWorkers: runtime.NumCPU(),
		queueSize:  defaultQueueSize,
		logger:     log.DiscardLogger,
		hasher:     hash.DefaultHasher(),
	}

	for _, opt := range opts {
		opt.Apply(wp)
	}

	if wp.numWorkers < 1 {
		wp.numWorkers = 1
	} else if wp.numWorkers > maxWorkers {
		wp.numWorkers = maxWorkers
	}

	if wp.queueSize < 1 {
		wp.queueSize = defaultQueueSize
	}

	return wp
}

// Start spawns the workers. It's safe to call Start multiple times.
func (wp *WorkerPool) Start() {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()
	if wp.started.Load() {
		return
	}

	wp.workers = make([]*worker, wp.numWorkers)
	for i := range wp.numWorkers {
		w := &worker{
			pool:    wp,
			queue:   make(chan string, wp.queueSize),
			pending: make(map[string]func()),
		}
		wp.workers[i] = w
		wp.wg.Add(1)
		go w.run()
	}
	wp.started.Store(true)
}

// Stop shuts the workers down. Pending tasks are dropped and a task in
// flight is allowed to complete before Stop returns.
func (wp *WorkerPool) Stop() {
	wp.mutex.Lock()
	if !wp.started.Load() || wp.stopped.Swap(true) {
		wp.mutex.Unlock()
		return
	}

	for _, w := range wp.workers {
		w.mu.Lock()
		clear(w.pending)
		w.mu.Unlock()
		close(w.queue)
	}
	wp.mutex.Unlock()
	wp.wg.Wait()
}

// Submit binds the task to the given key. When a task for the key is
// already pending it is replaced by this one. Submit returns
// errors.ErrEngineStopped when the pool is not running and
// errors.ErrEngineFull when the worker owning the key cannot queue more keys.
func (wp *WorkerPool) Submit(key string, task func()) error {
	wp.mutex.RLock()
	defer wp.mutex.RUnlock()
	if !wp.started.Load() || wp.stopped.Load() {
		return errors.ErrEngineStopped
	}

	w := wp.workers[wp.hasher.HashCode([]byte(key))%uint64(len(wp.workers))]
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.pending[key]; ok {
		w.pending[key] = task
		return nil
	}

	select {
	case w.queue <- key:
		w.pending[key] = task
		return nil
	default:
		return errors.ErrEngineFull
	}
}

// Pending returns the number of tasks waiting to run
func (wp *WorkerPool) Pending() int {
	wp.mutex.RLock()
	defer wp.mutex.RUnlock()
	total := 0
	for _, w := range wp.workers {
		w.mu.Lock()
		total += len(w.pending)
		w.mu.Unlock()
	}
	return total
}

// Executed returns the number of tasks that have run so far
func (wp *WorkerPool) Executed() uint64 {
	return wp.executed.Load()
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	for key := range w.queue {
		w.mu.Lock()
		task, ok := w.pending[key]
		delete(w.pending, key)
		w.mu.Unlock()

		if !ok || w.pool.stopped.Load() {
			continue
		}
		w.execute(key, task)
	}
}

func (w *worker) execute(key string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Errorf("task %s failed: %v", key, errors.NewPanicError(r))
		}
		w.pool.executed.Add(1)
	}()
	task()
}
