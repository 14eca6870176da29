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

// Package transport carries the distro protocol over NATS request/reply.
//
// Every member listens on distro.<member>.<operation> where <member> is its
// transport address with dots and colons replaced by underscores.
package transport

import (
	"strings"
	"time"

	"github.com/tochemey/distro/internal/compression"
	"github.com/tochemey/distro/log"
)

const (
	subjectRoot = "distro"

	opSync     = "sync"
	opVerify   = "verify"
	opQuery    = "query"
	opSnapshot = "snapshot"

	// DefaultTimeout is the default timeout of a request
	DefaultTimeout = 3 * time.Second
)

// Subject returns the subject a member listens on for the given operation
func Subject(member, op string) string {
	return subjectRoot + "." + memberToken(member) + "." + op
}

func memberToken(member string) string {
	return strings.NewReplacer(".", "_", ":", "_", "[", "", "]", "", "*", "_", ">", "_", " ", "_").Replace(member)
}

// response is the reply of every request
type response struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Compression string `json:"compression,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
}

type options struct {
	logger     log.Logger
	compressor compression.Compressor
	timeout    time.Duration
	callback   bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:     log.DefaultLogger,
		compressor: compression.NewZstd(),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an Agent or a Server
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompressor sets the compressor of the snapshot payloads
func WithCompressor(compressor compression.Compressor) Option {
	return func(o *options) {
		o.compressor = compressor
	}
}

// WithTimeout sets the timeout of every request sent by an Agent
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithCallback makes the Agent support the callback variants of the
// distro.TransportAgent calls
func WithCallback() Option {
	return func(o *options) {
		o.callback = true
	}
}
