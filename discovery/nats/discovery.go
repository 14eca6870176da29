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

// Package nats discovers cluster members through request/reply
// announcements on a NATS subject.
package nats

import (
	"net"
	"strconv"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
)

type messageType int

const (
	messageRegister messageType = iota
	messageDeregister
	messageRequest
	messageResponse
)

// message is the announcement exchanged between members
type message struct {
	Type messageType `json:"type"`
	Host string      `json:"host"`
	Port int         `json:"port"`
}

func (m message) address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

// Discovery represents the nats discovery provider
type Discovery struct {
	config *Config
	mu     sync.Mutex

	initialized *atomic.Bool
	registered  *atomic.Bool

	connection    *nats.Conn
	subscriptions []*nats.Subscription
	self          message

	logger log.Logger
}

// enforce compilation error
var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery returns an instance of the nats discovery provider
func NewDiscovery(config *Config, opts ...Option) *Discovery {
	d := &Discovery{
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		config:      config,
		logger:      log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(d)
	}

	return d
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderNats
}

// Initialize connects to the NATS server
func (d *Discovery) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	if err := d.config.Validate(); err != nil {
		return discovery.NewErrInvalidConfig(err)
	}

	if d.config.Timeout <= 0 {
		d.config.Timeout = time.Second
	}

	if d.config.MaxJoinAttempts <= 0 {
		d.config.MaxJoinAttempts = 5
	}

	if d.config.ReconnectWait <= 0 {
		d.config.ReconnectWait = 2 * time.Second
	}

	d.self = message{Host: d.config.Host, Port: d.config.GossipPort}

	opts := nats.GetDefaultOptions()
	opts.Url = d.config.Server
	opts.Name = d.self.address()
	opts.ReconnectWait = d.config.ReconnectWait
	opts.MaxReconnect = -1

	var connection *nats.Conn
	retrier := retry.NewRetrier(d.config.MaxJoinAttempts, 100*time.Millisecond, opts.ReconnectWait)
	if err := retrier.Run(func() error {
		var err error
		connection, err = opts.Connect()
		return err
	}); err != nil {
		return errors.Wrap(err, "failed to connect to nats")
	}

	d.connection = connection
	d.initialized.Store(true)
	return nil
}

// Register answers the identification requests of other members
func (d *Discovery) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if d.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	subscription, err := d.connection.Subscribe(d.config.subject(), d.handle)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to the discovery subject")
	}

	d.subscriptions = append(d.subscriptions, subscription)
	if err := d.publish(d.config.subject(), messageRegister); err != nil {
		return err
	}

	d.registered.Store(true)
	return nil
}

// Deregister stops answering identification requests and notifies peers
func (d *Discovery) Deregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.registered.Load() {
		return discovery.ErrNotRegistered
	}

	if err := d.unsubscribe(); err != nil {
		return err
	}

	d.registered.Store(false)
	if d.connection != nil {
		return d.publish(d.config.subject(), messageDeregister)
	}
	return nil
}

// DiscoverPeers broadcasts an identification request and collects the
// answers received within the configured timeout.
func (d *Discovery) DiscoverPeers() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}

	if !d.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	inbox := d.connection.NewRespInbox()
	sub, err := d.connection.SubscribeSync(inbox)
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to the reply inbox")
	}
	defer func() { _ = sub.Unsubscribe() }()

	bytea, err := codec.Marshal(message{Type: messageRequest, Host: d.self.Host, Port: d.self.Port})
	if err != nil {
		return nil, err
	}

	if err := d.connection.PublishRequest(d.config.subject(), inbox, bytea); err != nil {
		return nil, errors.Wrap(err, "failed to request peers")
	}

	peers := goset.NewSet[string]()
	deadline := time.Now().Add(d.config.Timeout)
	me := d.self.address()
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		msg, err := sub.NextMsg(remaining)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				break
			}
			return nil, errors.Wrap(err, "failed to read peer announcement")
		}

		var reply message
		if err := codec.Unmarshal(msg.Data, &reply); err != nil {
			d.logger.Warnf("dropping malformed peer announcement: %v", err)
			continue
		}

		if addr := reply.address(); addr != me {
			peers.Add(addr)
		}
	}

	return peers.ToSlice(), nil
}

// Close closes the provider
func (d *Discovery) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.initialized.Store(false)
	d.registered.Store(false)

	if d.connection == nil {
		return nil
	}

	defer func() {
		d.connection.Close()
		d.connection = nil
	}()

	if err := d.unsubscribe(); err != nil {
		return err
	}
	return d.connection.Flush()
}

func (d *Discovery) handle(msg *nats.Msg) {
	var request message
	if err := codec.Unmarshal(msg.Data, &request); err != nil {
		d.logger.Warnf("dropping malformed discovery message: %v", err)
		return
	}

	switch request.Type {
	case messageRegister:
		d.logger.Debugf("member=(%s) announced itself", request.address())
	case messageDeregister:
		d.logger.Debugf("member=(%s) left", request.address())
	case messageRequest:
		if msg.Reply == "" || request.address() == d.self.address() {
			return
		}
		if err := d.publish(msg.Reply, messageResponse); err != nil {
			d.logger.Warnf("failed to answer identification request from member=(%s): %v", request.address(), err)
		}
	}
}

func (d *Discovery) publish(subject string, kind messageType) error {
	bytea, err := codec.Marshal(message{Type: kind, Host: d.self.Host, Port: d.self.Port})
	if err != nil {
		return err
	}
	return d.connection.Publish(subject, bytea)
}

func (d *Discovery) unsubscribe() error {
	for _, subscription := range d.subscriptions {
		if subscription != nil && subscription.IsValid() {
			if err := subscription.Unsubscribe(); err != nil {
				return err
			}
		}
	}
	d.subscriptions = nil
	return nil
}
