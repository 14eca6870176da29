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

// Package discovery locates the gossip seeds of a distro cluster. A
// Provider only feeds the membership layer with peer addresses at startup;
// liveness is then tracked by gossip.
package discovery

const (
	// ProviderStatic identifies the static discovery provider
	ProviderStatic = "static"
	// ProviderEtcd identifies the etcd discovery provider
	ProviderEtcd = "etcd"
	// ProviderConsul identifies the consul discovery provider
	ProviderConsul = "consul"
	// ProviderNats identifies the nats discovery provider
	ProviderNats = "nats"
	// ProviderKubernetes identifies the kubernetes discovery provider
	ProviderKubernetes = "kubernetes"
)

// Provider helps discover the other members of the cluster
type Provider interface {
	// ID returns the discovery name
	ID() string
	// Initialize initializes the plugin: registers some internal data structures, clients etc.
	Initialize() error
	// Register registers this node to a service discovery directory.
	Register() error
	// Deregister removes this node from a service discovery directory.
	Deregister() error
	// DiscoverPeers returns the gossip addresses of the known peers, self excluded.
	DiscoverPeers() ([]string, error)
	// Close closes the provider
	Close() error
}
