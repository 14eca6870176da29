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

import (
	"time"

	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(protocol *Protocol)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Protocol)

// Apply applies the option
func (f OptionFunc) Apply(protocol *Protocol) {
	f(protocol)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(p *Protocol) {
		p.logger = logger
	})
}

// WithMetric sets the metric instruments
func WithMetric(distroMetric *metric.DistroMetric) Option {
	return OptionFunc(func(p *Protocol) {
		p.metric = distroMetric
	})
}

// WithVerifyInterval sets the period of the verification rounds
func WithVerifyInterval(interval time.Duration) Option {
	return OptionFunc(func(p *Protocol) {
		p.verifyInterval = interval
	})
}

// WithVerifyInitialDelay sets the delay before the first verification round
func WithVerifyInitialDelay(delay time.Duration) Option {
	return OptionFunc(func(p *Protocol) {
		p.verifyInitialDelay = delay
	})
}

// WithSyncDelay sets how long a change waits before it is pushed to peers.
// Changes of the same key within the delay are pushed once.
func WithSyncDelay(delay time.Duration) Option {
	return OptionFunc(func(p *Protocol) {
		p.syncDelay = delay
	})
}

// WithSyncRetryDelay sets the delay before a failed push is retried
func WithSyncRetryDelay(delay time.Duration) Option {
	return OptionFunc(func(p *Protocol) {
		p.syncRetryDelay = delay
	})
}

// WithLoadRetryDelay sets the delay between two snapshot load attempts
func WithLoadRetryDelay(delay time.Duration) Option {
	return OptionFunc(func(p *Protocol) {
		p.loadRetryDelay = delay
	})
}

// WithLoadMaxAttempts sets the number of snapshot load attempts per round
func WithLoadMaxAttempts(attempts int) Option {
	return OptionFunc(func(p *Protocol) {
		p.loadMaxAttempts = attempts
	})
}

// WithEngineWorkers sets the number of workers of the task execution engine
func WithEngineWorkers(workers int) Option {
	return OptionFunc(func(p *Protocol) {
		p.engineWorkers = workers
	})
}

// WithEngineQueueSize sets the queue size of every engine worker
func WithEngineQueueSize(size int) Option {
	return OptionFunc(func(p *Protocol) {
		p.engineQueueSize = size
	})
}
