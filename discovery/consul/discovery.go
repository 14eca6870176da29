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

// Package consul registers members as Consul agent services and discovers
// the other members of the same cluster through the health endpoint.
package consul

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/log"
)

const (
	metaCluster   = "distro-cluster"
	metaStartedAt = "distro-started-at"
)

// Discovery registers the member as a Consul service instance tagged with
// the cluster name.
type Discovery struct {
	config *Config
	logger log.Logger

	mu          sync.RWMutex
	initialized *atomic.Bool
	registered  *atomic.Bool

	client    *api.Client
	serviceID string
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates a new instance of the Consul discovery provider.
func NewDiscovery(config *Config, opts ...Option) *Discovery {
	if config == nil {
		config = new(Config)
	}

	d := &Discovery{
		config:      config,
		logger:      log.DiscardLogger,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		serviceID:   net.JoinHostPort(config.Host, strconv.Itoa(config.GossipPort)),
	}
	for _, opt := range opts {
		opt.Apply(d)
	}
	return d
}

// ID returns the discovery provider id
func (x *Discovery) ID() string {
	return discovery.ProviderConsul
}

// Initialize creates the consul client and checks the agent is reachable.
func (x *Discovery) Initialize() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	x.config.Sanitize()
	if err := x.config.Validate(); err != nil {
		return discovery.NewErrInvalidConfig(err)
	}

	client, err := api.NewClient(x.config.clientConfig())
	if err != nil {
		return errors.Wrap(err, "failed to create consul client")
	}

	if _, err := client.Status().Leader(); err != nil {
		return errors.Wrap(err, "failed to reach the consul agent")
	}

	x.client = client
	x.initialized.Store(true)
	return nil
}

// Register adds the member to the Consul catalog.
func (x *Discovery) Register() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if x.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	registration := &api.AgentServiceRegistration{
		ID:      x.serviceID,
		Name:    x.config.ServiceName,
		Address: x.config.Host,
		Port:    x.config.GossipPort,
		Tags:    []string{x.config.ClusterName},
		Meta: map[string]string{
			metaCluster:   x.config.ClusterName,
			metaStartedAt: strconv.FormatInt(time.Now().UnixMilli(), 10),
		},
		Check: x.config.HealthCheck.agentCheck(x.serviceID),
	}

	if err := x.client.Agent().ServiceRegister(registration); err != nil {
		return errors.Wrap(err, "failed to register member")
	}

	x.registered.Store(true)
	x.logger.Infof("member %s registered in consul as %s", x.serviceID, x.config.ServiceName)
	return nil
}

// Deregister removes the member from the Consul catalog.
func (x *Discovery) Deregister() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if !x.registered.Load() {
		return discovery.ErrNotRegistered
	}

	if err := x.client.Agent().ServiceDeregister(x.serviceID); err != nil {
		return errors.Wrap(err, "failed to deregister member")
	}

	x.registered.Store(false)
	return nil
}

// DiscoverPeers returns the gossip addresses of the other cluster members.
func (x *Discovery) DiscoverPeers() ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}

	if !x.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	ctx, cancel := context.WithTimeout(x.config.Context, x.config.Timeout)
	defer cancel()

	query := (&api.QueryOptions{Datacenter: x.config.Datacenter}).WithContext(ctx)
	entries, _, err := x.client.Health().Service(x.config.ServiceName, x.config.ClusterName, x.config.OnlyPassing, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover peers")
	}

	peers := goset.NewThreadUnsafeSet[string]()
	for _, entry := range entries {
		if addr, ok := x.peerAddress(entry); ok {
			peers.Add(addr)
		}
	}
	return peers.ToSlice(), nil
}

// Close drops the consul client. It does not deregister the member.
func (x *Discovery) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.initialized.Store(false)
	x.registered.Store(false)
	x.client = nil
	return nil
}

func (x *Discovery) peerAddress(entry *api.ServiceEntry) (string, bool) {
	if entry == nil || entry.Service == nil {
		return "", false
	}

	service := entry.Service
	if service.ID == x.serviceID || service.Meta[metaCluster] != x.config.ClusterName {
		return "", false
	}

	host := service.Address
	if host == "" && entry.Node != nil {
		host = entry.Node.Address
	}
	if host == "" {
		x.logger.Warnf("consul service %s has no address", service.ID)
		return "", false
	}
	return net.JoinHostPort(host, strconv.Itoa(service.Port)), true
}
