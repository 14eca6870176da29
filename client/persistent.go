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

// PersistentProxy sends every call once. Persistent instances outlive the
// connection so nothing is replayed.
type PersistentProxy struct {
	remote Remote
}

var _ Proxy = (*PersistentProxy)(nil)

// NewPersistentProxy creates a PersistentProxy
func NewPersistentProxy(remote Remote) *PersistentProxy {
	return &PersistentProxy{remote: remote}
}

// RegisterService registers a persistent instance
func (p *PersistentProxy) RegisterService(ctx context.Context, key string, instance naming.Instance) error {
	return p.remote.Register(ctx, key, instance)
}

// DeregisterService deregisters a persistent instance
func (p *PersistentProxy) DeregisterService(ctx context.Context, key string, instance naming.Instance) error {
	return p.remote.Deregister(ctx, key, instance)
}

// Subscribe subscribes to the service key
func (p *PersistentProxy) Subscribe(ctx context.Context, key string) ([]naming.Instance, error) {
	return p.remote.Subscribe(ctx, key)
}

// Unsubscribe unsubscribes from the service key
func (p *PersistentProxy) Unsubscribe(ctx context.Context, key string) error {
	return p.remote.Unsubscribe(ctx, key)
}
