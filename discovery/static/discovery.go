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

// Package static provides a discovery provider over a fixed list of seeds.
package static

import (
	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/discovery"
)

// Discovery represents the static discovery provider
type Discovery struct {
	config      *Config
	initialized *atomic.Bool
	registered  *atomic.Bool
}

// enforce compilation error
var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates an instance of Discovery
func NewDiscovery(config *Config) *Discovery {
	return &Discovery{
		config:      config,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
	}
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderStatic
}

// Initialize validates the configured seeds
func (d *Discovery) Initialize() error {
	if d.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}
	if err := d.config.Validate(); err != nil {
		return discovery.NewErrInvalidConfig(err)
	}
	d.initialized.Store(true)
	return nil
}

// Register marks the provider registered. A static list needs no directory.
func (d *Discovery) Register() error {
	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if d.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}
	d.registered.Store(true)
	return nil
}

// Deregister marks the provider deregistered
func (d *Discovery) Deregister() error {
	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if !d.registered.Load() {
		return discovery.ErrNotRegistered
	}
	d.registered.Store(false)
	return nil
}

// DiscoverPeers returns the configured hosts except self
func (d *Discovery) DiscoverPeers() ([]string, error) {
	if !d.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}
	if !d.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	peers := goset.NewSet(d.config.Hosts...)
	peers.Remove(d.config.Self)
	return peers.ToSlice(), nil
}

// Close closes the provider
func (d *Discovery) Close() error {
	d.initialized.Store(false)
	d.registered.Store(false)
	return nil
}
