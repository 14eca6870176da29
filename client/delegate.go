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
)

// Delegate routes every call to the ephemeral or the persistent path.
// Instances are routed by their Ephemeral flag and subscriptions always take
// the ephemeral path.
type Delegate struct {
	ephemeral  Proxy
	persistent Proxy
}

var _ Proxy = (*Delegate)(nil)

// NewDelegate creates a Delegate
func NewDelegate(ephemeral, persistent Proxy) *Delegate {
	return &Delegate{
		ephemeral:  ephemeral,
		persistent: persistent,
	}
}

// RegisterService registers the instance through the matching path
func (d *Delegate) RegisterService(ctx context.Context, key string, instance naming.Instance) error {
	return d.proxy(instance).RegisterService(ctx, key, instance)
}

// DeregisterService deregisters the instance through the matching path
func (d *Delegate) DeregisterService(ctx context.Context, key string, instance naming.Instance) error {
	return d.proxy(instance).DeregisterService(ctx, key, instance)
}

// Subscribe subscribes to the service key
func (d *Delegate) Subscribe(ctx context.Context, key string) ([]naming.Instance, error) {
	return d.ephemeral.Subscribe(ctx, key)
}

// Unsubscribe unsubscribes from the service key
func (d *Delegate) Unsubscribe(ctx context.Context, key string) error {
	return d.ephemeral.Unsubscribe(ctx, key)
}

func (d *Delegate) proxy(instance naming.Instance) Proxy {
	if instance.Ephemeral {
		return d.ephemeral
	}
	return d.persistent
}
