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

package cluster

import (
	"time"

	"github.com/tochemey/distro/log"
)

// Option is the interface that applies a Members option.
type Option interface {
	// Apply sets the Option value of Members.
	Apply(members *Members)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(members *Members)

// Apply applies the Members' option
func (f OptionFunc) Apply(members *Members) {
	f(members)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(members *Members) {
		members.logger = logger
	})
}

// WithJoinTimeout sets the time budget for discovering and joining peers
func WithJoinTimeout(timeout time.Duration) Option {
	return OptionFunc(func(members *Members) {
		members.joinTimeout = timeout
	})
}

// WithJoinRetryInterval sets the delay between two join attempts
func WithJoinRetryInterval(interval time.Duration) Option {
	return OptionFunc(func(members *Members) {
		members.joinRetryInterval = interval
	})
}

// WithMaxJoinAttempts sets the maximum number of join attempts
func WithMaxJoinAttempts(attempts int) Option {
	return OptionFunc(func(members *Members) {
		members.maxJoinAttempts = attempts
	})
}

// WithShutdownTimeout sets the time budget for leaving the cluster
func WithShutdownTimeout(timeout time.Duration) Option {
	return OptionFunc(func(members *Members) {
		members.shutdownTimeout = timeout
	})
}
