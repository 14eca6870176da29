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

package ticker

import (
	"sync"
	"time"
)

// Ticker runs a task repeatedly with a fixed delay between the end of one
// run and the start of the next one. A slow task never overlaps with itself
// and never causes a burst of catch-up runs.
type Ticker struct {
	delay   time.Duration
	mutex   sync.Mutex
	ticking bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an instance of Ticker with the given delay
func New(delay time.Duration) *Ticker {
	if delay <= 0 {
		panic("delay must be greater than zero")
	}
	return &Ticker{delay: delay}
}

// Start the ticker. The task is first invoked after one delay and then
// one delay after each completion until Stop is called.
// Calling Start on a ticking Ticker is a no-op.
func (t *Ticker) Start(task func()) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.ticking {
		return
	}
	t.ticking = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.loop(task, t.stopCh, t.doneCh)
}

// Stop stops the ticker and waits for a running task to complete.
// No task runs after Stop returns and before Start is called again.
func (t *Ticker) Stop() {
	t.mutex.Lock()
	if !t.ticking {
		t.mutex.Unlock()
		return
	}
	t.ticking = false
	close(t.stopCh)
	doneCh := t.doneCh
	t.mutex.Unlock()
	<-doneCh
}

// Ticking returns true when the ticker is ticking
// and false when it is stopped
func (t *Ticker) Ticking() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.ticking
}

func (t *Ticker) loop(task func(), stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			select {
			case <-stopCh:
				return
			default:
			}
			task()
			timer.Reset(t.delay)
		}
	}
}
