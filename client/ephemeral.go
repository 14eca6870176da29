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

package client

import (
	"context"

	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/redo"
)

// Registration is the redo value of an ephemeral instance
type Registration struct {
	ServiceKey string
	Instance   naming.Instance
}

func registrationKey(key string, instance naming.Instance) string {
	return key + "|" + instance.Identity()
}

// EphemeralProxy caches every intent in the redo stores before calling the
// remote. An intent whose call failed, or that was lost with the connection,
// is replayed by the redo scheduler.
type EphemeralProxy struct {
	remote      Remote
	instances   *redo.Store[Registration]
	subscribers *redo.Store[string]
}

var _ Proxy = (*EphemeralProxy)(nil)

// NewEphemeralProxy creates an EphemeralProxy and registers its redo kinds
// with the redo service
func NewEphemeralProxy(remote Remote, redoService *redo.Service) (*EphemeralProxy, error) {
	proxy := &EphemeralProxy{
		remote:      remote,
		instances:   redo.NewStore[Registration](InstanceKind),
		subscribers: redo.NewStore[string](SubscriberKind),
	}

	if err := redoService.AddKind(redo.Bind[Registration](proxy.instances, instanceHandler{remote})); err != nil {
		return nil, err
	}
	if err := redoService.AddKind(redo.Bind[string](proxy.subscribers, subscriberHandler{remote})); err != nil {
		return nil, err
	}
	return proxy, nil
}

// RegisterService registers an ephemeral instance
func (p *EphemeralProxy) RegisterService(ctx context.Context, key string, instance naming.Instance) error {
	redoKey := registrationKey(key, instance)
	p.instances.Cache(redoKey, Registration{ServiceKey: key, Instance: instance})
	if err := p.remote.Register(ctx, key, instance); err != nil {
		return err
	}
	p.instances.MarkRegistered(redoKey)
	return nil
}

// DeregisterService deregisters an ephemeral instance
func (p *EphemeralProxy) DeregisterService(ctx context.Context, key string, instance naming.Instance) error {
	redoKey := registrationKey(key, instance)
	p.instances.MarkDeregistering(redoKey)
	if err := p.remote.Deregister(ctx, key, instance); err != nil {
		return err
	}
	p.instances.CompleteDeregister(redoKey)
	return nil
}

// Subscribe subscribes to the service key and returns its current instances
func (p *EphemeralProxy) Subscribe(ctx context.Context, key string) ([]naming.Instance, error) {
	p.subscribers.Cache(key, key)
	instances, err := p.remote.Subscribe(ctx, key)
	if err != nil {
		return nil, err
	}
	p.subscribers.MarkRegistered(key)
	return instances, nil
}

// Unsubscribe unsubscribes from the service key
func (p *EphemeralProxy) Unsubscribe(ctx context.Context, key string) error {
	p.subscribers.MarkDeregistering(key)
	if err := p.remote.Unsubscribe(ctx, key); err != nil {
		return err
	}
	p.subscribers.CompleteDeregister(key)
	return nil
}

// IsSubscribed returns true when the subscription to key is acknowledged
func (p *EphemeralProxy) IsSubscribed(key string) bool {
	return p.subscribers.IsRegistered(key)
}

// IsRegistered returns true when the registration of instance is acknowledged
func (p *EphemeralProxy) IsRegistered(key string, instance naming.Instance) bool {
	return p.instances.IsRegistered(registrationKey(key, instance))
}

type instanceHandler struct {
	remote Remote
}

func (h instanceHandler) Register(ctx context.Context, _ string, value Registration) error {
	return h.remote.Register(ctx, value.ServiceKey, value.Instance)
}

func (h instanceHandler) Deregister(ctx context.Context, _ string, value Registration) error {
	return h.remote.Deregister(ctx, value.ServiceKey, value.Instance)
}

type subscriberHandler struct {
	remote Remote
}

func (h subscriberHandler) Register(ctx context.Context, key string, _ string) error {
	_, err := h.remote.Subscribe(ctx, key)
	return err
}

func (h subscriberHandler) Deregister(ctx context.Context, key string, _ string) error {
	return h.remote.Unsubscribe(ctx, key)
}
