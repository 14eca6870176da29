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

// Package client implements the registration side of a naming client.
// Ephemeral instances and subscriptions go through the redo-backed
// EphemeralProxy so they survive reconnects; persistent instances are sent
// once through the PersistentProxy.
package client

import (
	"context"

	"github.com/tochemey/distro/naming"
)

const (
	// InstanceKind is the redo kind of the ephemeral instances
	InstanceKind = "naming-instance"
	// SubscriberKind is the redo kind of the subscriptions
	SubscriberKind = "naming-subscriber"
)

// Proxy is the capability shared by the ephemeral and persistent paths
type Proxy interface {
	RegisterService(ctx context.Context, key string, instance naming.Instance) error
	DeregisterService(ctx context.Context, key string, instance naming.Instance) error
	Subscribe(ctx context.Context, key string) ([]naming.Instance, error)
	Unsubscribe(ctx context.Context, key string) error
}

// Remote is the connection to the naming servers
type Remote interface {
	Register(ctx context.Context, key string, instances ...naming.Instance) error
	Deregister(ctx context.Context, key string, instances ...naming.Instance) error
	Subscribe(ctx context.Context, key string) ([]naming.Instance, error)
	Unsubscribe(ctx context.Context, key string) error
	Query(ctx context.Context, key string) ([]naming.Instance, error)
}
