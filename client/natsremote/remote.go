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

// Package natsremote implements client.Remote over NATS. The connection
// events of the NATS client drive the redo service.
package natsremote

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/tochemey/distro/client"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/naming/endpoint"
)

// ConnectionListener receives the connection events.
// redo.Service is a ConnectionListener.
type ConnectionListener interface {
	OnConnected()
	OnDisconnect()
}

// Remote is a client.Remote over NATS
type Remote struct {
	*options
	id       string
	url      string
	listener ConnectionListener

	mu   sync.RWMutex
	conn *nats.Conn
}

var _ client.Remote = (*Remote)(nil)

// New creates a Remote for the NATS server at url
func New(url string, listener ConnectionListener, opts ...Option) *Remote {
	return &Remote{
		options:  newOptions(opts...),
		id:       uuid.NewString(),
		url:      url,
		listener: listener,
	}
}

// ID returns the identifier of the client, used as its subscriber name
func (r *Remote) ID() string {
	return r.id
}

// Connect connects to the NATS server, retrying up to the configured number
// of attempts
func (r *Remote) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}

	opts := nats.GetDefaultOptions()
	opts.Url = r.url
	opts.Name = r.id
	opts.MaxReconnect = -1
	opts.ReconnectWait = r.reconnectWait
	opts.DisconnectedErrCB = func(_ *nats.Conn, err error) {
		r.logger.Warnf("naming client=(%s) disconnected: %v", r.id, err)
		r.listener.OnDisconnect()
	}
	opts.ReconnectedCB = func(conn *nats.Conn) {
		r.logger.Infof("naming client=(%s) reconnected to %s", r.id, conn.ConnectedUrl())
		r.listener.OnConnected()
	}

	var conn *nats.Conn
	retrier := retry.NewRetrier(r.maxAttempts, 100*time.Millisecond, r.reconnectWait)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		var err error
		conn, err = opts.Connect()
		return err
	}); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.url, err)
	}

	if r.onNotify != nil {
		if _, err := conn.Subscribe(endpoint.NotifySubject(r.subject, r.id), r.notified); err != nil {
			conn.Close()
			return fmt.Errorf("failed to subscribe to the notifications: %w", err)
		}
	}

	r.conn = conn
	r.listener.OnConnected()
	return nil
}

// Close closes the connection
func (r *Remote) Close() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (r *Remote) notified(msg *nats.Msg) {
	notification := new(endpoint.Notification)
	if err := codec.Unmarshal(msg.Data, notification); err != nil {
		r.logger.Warnf("naming client=(%s) received a malformed notification: %v", r.id, err)
		return
	}
	r.onNotify(notification.ServiceKey, notification.Instances)
}

// Register implements client.Remote
func (r *Remote) Register(ctx context.Context, key string, instances ...naming.Instance) error {
	_, err := r.request(ctx, &endpoint.Request{Op: endpoint.OpRegister, ServiceKey: key, Instances: instances})
	return err
}

// Deregister implements client.Remote
func (r *Remote) Deregister(ctx context.Context, key string, instances ...naming.Instance) error {
	_, err := r.request(ctx, &endpoint.Request{Op: endpoint.OpDeregister, ServiceKey: key, Instances: instances})
	return err
}

// Subscribe implements client.Remote
func (r *Remote) Subscribe(ctx context.Context, key string) ([]naming.Instance, error) {
	resp, err := r.request(ctx, &endpoint.Request{Op: endpoint.OpSubscribe, ServiceKey: key, Subscriber: r.id})
	if err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// Unsubscribe implements client.Remote
func (r *Remote) Unsubscribe(ctx context.Context, key string) error {
	_, err := r.request(ctx, &endpoint.Request{Op: endpoint.OpUnsubscribe, ServiceKey: key, Subscriber: r.id})
	return err
}

// Query implements client.Remote
func (r *Remote) Query(ctx context.Context, key string) ([]naming.Instance, error) {
	resp, err := r.request(ctx, &endpoint.Request{Op: endpoint.OpQuery, ServiceKey: key})
	if err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

func (r *Remote) request(ctx context.Context, request *endpoint.Request) (*endpoint.Response, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return nil, errors.ErrNotConnected
	}

	payload, err := codec.Marshal(request)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := conn.RequestWithContext(ctx, r.subject, payload)
	if err != nil {
		if stderrors.Is(err, nats.ErrNoResponders) {
			return nil, errors.NewErrMemberNotFound(r.subject)
		}
		return nil, err
	}

	resp := new(endpoint.Response)
	if err := codec.Unmarshal(msg.Data, resp); err != nil {
		return nil, err
	}

	switch {
	case resp.Discarded:
		return nil, fmt.Errorf("%s of key=(%s): %w", request.Op, request.ServiceKey, errors.ErrOperationDiscarded)
	case !resp.Success:
		return nil, errors.NewErrRemoteCallFailed(r.subject, resp.Error)
	}
	return resp, nil
}
