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

package distro

import "sync"

// pendingPush is a Data waiting to be pushed to one member
type pendingPush struct {
	data    *Data
	retried bool
}

// outbox keeps the pending pushes of every (member, key) in the order they
// were made
type outbox struct {
	mu     sync.Mutex
	queues map[string][]pendingPush
}

func newOutbox() *outbox {
	return &outbox{queues: make(map[string][]pendingPush)}
}

// enqueue queues items after the pending pushes of key
func (o *outbox) enqueue(key string, items ...pendingPush) {
	o.mu.Lock()
	o.queues[key] = append(o.queues[key], items...)
	o.mu.Unlock()
}

// requeue queues items before the pending pushes of key
func (o *outbox) requeue(key string, items []pendingPush) {
	if len(items) == 0 {
		return
	}
	o.mu.Lock()
	o.queues[key] = append(append(make([]pendingPush, 0, len(items)+len(o.queues[key])), items...), o.queues[key]...)
	o.mu.Unlock()
}

// drain removes and returns the pending pushes of key
func (o *outbox) drain(key string) []pendingPush {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.queues[key]
	delete(o.queues, key)
	return items
}

// size returns the number of pending pushes
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, items := range o.queues {
		total += len(items)
	}
	return total
}

func (o *outbox) clear() {
	o.mu.Lock()
	clear(o.queues)
	o.mu.Unlock()
}
