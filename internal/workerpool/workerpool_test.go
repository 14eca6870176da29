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

package workerpool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/lib"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool(t *testing.T) {
	t.Run("With happy path", func(t *testing.T) {
		pool := New(WithWorkers(8), WithQueueSize(2048))
		pool.Start()

		var executed atomic.Int64
		for i := range 1000 {
			require.NoError(t, pool.Submit(fmt.Sprintf("member-%d@@naming-instance", i), func() {
				executed.Add(1)
			}))
		}

		require.Eventually(t, func() bool { return executed.Load() == 1000 }, 5*time.Second, 10*time.Millisecond)
		assert.EqualValues(t, 1000, pool.Executed())

		pool.Stop()
		// already stopped
		pool.Stop()
	})
	t.Run("With same key never running concurrently", func(t *testing.T) {
		pool := New(WithWorkers(4))
		pool.Start()
		defer pool.Stop()

		var (
			inFlight atomic.Int32
			overlap  atomic.Bool
			done     sync.WaitGroup
		)
		const key = "10.0.0.2:7848@@naming-instance"
		for range 20 {
			done.Add(1)
			go func() {
				defer done.Done()
				_ = pool.Submit(key, func() {
					if inFlight.Add(1) > 1 {
						overlap.Store(true)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
				})
			}()
		}
		done.Wait()
		require.Eventually(t, func() bool { return pool.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
		assert.False(t, overlap.Load())
	})
	t.Run("With newer pending task replacing the older one", func(t *testing.T) {
		pool := New(WithWorkers(1))
		pool.Start()
		defer pool.Stop()

		release := make(chan struct{})
		started := make(chan struct{})
		var ran []string
		var mu sync.Mutex
		record := func(name string) func() {
			return func() {
				mu.Lock()
				ran = append(ran, name)
				mu.Unlock()
			}
		}

		require.NoError(t, pool.Submit("key", func() {
			close(started)
			<-release
			record("first")()
		}))
		<-started

		require.NoError(t, pool.Submit("key", record("second")))
		require.NoError(t, pool.Submit("key", record("third")))
		assert.Equal(t, 1, pool.Pending())

		close(release)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(ran) == 2
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		assert.Equal(t, []string{"first", "third"}, ran)
		mu.Unlock()
	})
	t.Run("With bounded queue", func(t *testing.T) {
		pool := New(WithWorkers(1), WithQueueSize(1))
		pool.Start()
		defer pool.Stop()

		release := make(chan struct{})
		started := make(chan struct{})
		require.NoError(t, pool.Submit("busy", func() {
			close(started)
			<-release
		}))
		<-started

		require.NoError(t, pool.Submit("a", func() {}))
		err := pool.Submit("b", func() {})
		require.ErrorIs(t, err, errors.ErrEngineFull)
		close(release)
	})
	t.Run("With a panicking task", func(t *testing.T) {
		pool := New(WithWorkers(1))
		pool.Start()
		defer pool.Stop()

		var executed atomic.Bool
		require.NoError(t, pool.Submit("boom", func() { panic("boom") }))
		require.NoError(t, pool.Submit("next", func() { executed.Store(true) }))
		require.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)
	})
	t.Run("With stop dropping pending tasks", func(t *testing.T) {
		pool := New(WithWorkers(1))
		pool.Start()

		release := make(chan struct{})
		started := make(chan struct{})
		var dropped atomic.Bool
		require.NoError(t, pool.Submit("busy", func() {
			close(started)
			<-release
		}))
		<-started
		require.NoError(t, pool.Submit("later", func() { dropped.Store(true) }))

		go func() {
			lib.Pause(20 * time.Millisecond)
			close(release)
		}()
		pool.Stop()
		assert.False(t, dropped.Load())
		require.ErrorIs(t, pool.Submit("after", func() {}), errors.ErrEngineStopped)
	})
	t.Run("When not started", func(t *testing.T) {
		pool := New(WithWorkers(0))
		require.Equal(t, 1, pool.numWorkers)
		require.ErrorIs(t, pool.Submit("key", func() {}), errors.ErrEngineStopped)
		pool.Stop()
		require.False(t, pool.stopped.Load())
	})
}
