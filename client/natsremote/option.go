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

package natsremote

import (
	"time"

	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/naming/endpoint"
)

const (
	// DefaultTimeout is the default timeout of a request
	DefaultTimeout = 3 * time.Second
	// DefaultReconnectWait is the default delay between two connection attempts
	DefaultReconnectWait = 2 * time.Second
	// DefaultMaxAttempts is the default number of initial connection attempts
	DefaultMaxAttempts = 5
)

type options struct {
	logger        log.Logger
	subject       string
	timeout       time.Duration
	reconnectWait time.Duration
	maxAttempts   int
	onNotify      func(key string, instances []naming.Instance)
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:        log.DefaultLogger,
		subject:       endpoint.DefaultSubject,
		timeout:       DefaultTimeout,
		reconnectWait: DefaultReconnectWait,
		maxAttempts:   DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a Remote
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSubject sets the subject of the naming endpoint
func WithSubject(subject string) Option {
	return func(o *options) {
		o.subject = subject
	}
}

// WithTimeout sets the timeout of every request
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithReconnect sets the delay between two connection attempts and the
// number of initial connection attempts
func WithReconnect(wait time.Duration, maxAttempts int) Option {
	return func(o *options) {
		if wait > 0 {
			o.reconnectWait = wait
		}
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
	}
}

// WithNotificationHandler sets the function called with the instances of a
// subscribed service every time they change
func WithNotificationHandler(handler func(key string, instances []naming.Instance)) Option {
	return func(o *options) {
		o.onNotify = handler
	}
}
