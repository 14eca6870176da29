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

// Package endpoint answers the naming requests of the clients over NATS.
package endpoint

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/naming"
)

const (
	// DefaultSubject is the subject the clients send their requests to
	DefaultSubject = "distro.naming"
	// DefaultQueue is the queue group shared by the members of the cluster
	DefaultQueue = "distro-naming"
	// DefaultTimeout bounds the handling of one request
	DefaultTimeout = 3 * time.Second

	notifyToken = "notify"
)

// Op is a client operation
type Op string

const (
	OpRegister    Op = "register"
	OpDeregister  Op = "deregister"
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpQuery       Op = "query"
)

// Request is sent by a client
type Request struct {
	Op         Op                `json:"op"`
	ServiceKey string            `json:"serviceKey"`
	Instances  []naming.Instance `json:"instances,omitempty"`
	Subscriber string            `json:"subscriber,omitempty"`
}

// Response answers a Request. Discarded is set when the conflict resolver
// dropped the operation and the client should retry it later.
type Response struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Discarded bool              `json:"discarded,omitempty"`
	Instances []naming.Instance `json:"instances,omitempty"`
}

// Notification is published to a subscriber when the instances of a service
// it subscribed to change
type Notification struct {
	ServiceKey string            `json:"serviceKey"`
	Instances  []naming.Instance `json:"instances"`
}

// NotifySubject returns the subject the notifications of subscriber are
// published to by the endpoint listening on subject
func NotifySubject(subject, subscriber string) string {
	return subject + "." + notifyToken + "." + subscriber
}

// Registry is the naming service the endpoint delegates to.
// naming.Service is a Registry.
type Registry interface {
	Register(ctx context.Context, key string, instances ...naming.Instance) error
	Deregister(ctx context.Context, key string, instances ...naming.Instance) error
	Instances(key string) []naming.Instance
	Subscribe(key, subscriber string)
	Unsubscribe(key, subscriber string)
	SetNotifier(notifier naming.Notifier)
}

var (
	_ Registry        = (*naming.Service)(nil)
	_ naming.Notifier = (*Endpoint)(nil)
)

// Option configures an Endpoint
type Option func(*Endpoint)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// WithSubject sets the subject and the queue group of the endpoint
func WithSubject(subject, queue string) Option {
	return func(e *Endpoint) {
		e.subject = subject
		e.queue = queue
	}
}

// WithTimeout sets the time limit of one request
func WithTimeout(timeout time.Duration) Option {
	return func(e *Endpoint) {
		e.timeout = timeout
	}
}

// Endpoint serves the naming requests. Every member of the cluster joins the
// same queue group so a request is handled by exactly one of them.
type Endpoint struct {
	conn     *nats.Conn
	registry Registry
	logger   log.Logger
	subject  string
	queue    string
	timeout  time.Duration

	mu  sync.Mutex
	sub *nats.Subscription
}

// New creates an Endpoint
func New(conn *nats.Conn, registry Registry, opts ...Option) *Endpoint {
	endpoint := &Endpoint{
		conn:     conn,
		registry: registry,
		logger:   log.DefaultLogger,
		subject:  DefaultSubject,
		queue:    DefaultQueue,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(endpoint)
	}
	return endpoint
}

// Start subscribes to the request subject and notifies the subscribers of
// the registry
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sub != nil {
		return nil
	}

	sub, err := e.conn.QueueSubscribe(e.subject, e.queue, e.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", e.subject, err)
	}
	e.sub = sub
	e.registry.SetNotifier(e)
	e.logger.Infof("naming endpoint listening on %s", e.subject)
	return nil
}

// Stop drains the subscription
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sub == nil {
		return nil
	}
	e.registry.SetNotifier(nil)
	err := e.sub.Drain()
	e.sub = nil
	return err
}

func (e *Endpoint) handle(msg *nats.Msg) {
	request := new(Request)
	if err := codec.Unmarshal(msg.Data, request); err != nil {
		e.logger.Warnf("failed to decode a naming request: %v", err)
		e.reply(msg, &Response{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	e.reply(msg, e.serve(ctx, request))
}

func (e *Endpoint) serve(ctx context.Context, request *Request) *Response {
	var err error
	switch request.Op {
	case OpRegister:
		err = e.registry.Register(ctx, request.ServiceKey, request.Instances...)
	case OpDeregister:
		err = e.registry.Deregister(ctx, request.ServiceKey, request.Instances...)
	case OpSubscribe:
		if err = validateSubscriber(request.Subscriber); err != nil {
			break
		}
		e.registry.Subscribe(request.ServiceKey, request.Subscriber)
		return &Response{Success: true, Instances: e.registry.Instances(request.ServiceKey)}
	case OpUnsubscribe:
		e.registry.Unsubscribe(request.ServiceKey, request.Subscriber)
	case OpQuery:
		return &Response{Success: true, Instances: e.registry.Instances(request.ServiceKey)}
	default:
		err = fmt.Errorf("unknown naming operation %q", request.Op)
	}

	if err != nil {
		e.logger.Debugf("naming %s of key=(%s) failed: %v", request.Op, request.ServiceKey, err)
		return &Response{
			Error:     err.Error(),
			Discarded: stderrors.Is(err, errors.ErrOperationDiscarded),
		}
	}
	return &Response{Success: true}
}

// Notify implements naming.Notifier
func (e *Endpoint) Notify(key, subscriber string, instances []naming.Instance) error {
	bytea, err := codec.Marshal(&Notification{ServiceKey: key, Instances: instances})
	if err != nil {
		return err
	}
	return e.conn.Publish(NotifySubject(e.subject, subscriber), bytea)
}

// validateSubscriber checks that subscriber is a single subject token
func validateSubscriber(subscriber string) error {
	switch {
	case subscriber == "":
		return errors.NewErrInvalidRecord(stderrors.New("subscriber is required"))
	case strings.ContainsAny(subscriber, ".*> \t\r\n"):
		return errors.NewErrInvalidRecord(fmt.Errorf("subscriber %q is not a subject token", subscriber))
	default:
		return nil
	}
}

func (e *Endpoint) reply(msg *nats.Msg, resp *Response) {
	bytea, err := codec.Marshal(resp)
	if err != nil {
		e.logger.Errorf("failed to encode a naming response: %v", err)
		return
	}
	if err := msg.Respond(bytea); err != nil {
		e.logger.Warnf("failed to respond to a naming request: %v", err)
	}
}
