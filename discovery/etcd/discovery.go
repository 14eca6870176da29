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

// Package etcd registers members under a leased key and discovers the
// other members of the same cluster from the key prefix.
package etcd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
)

// record is the value stored under a member key
type record struct {
	Host       string `msgpack:"host"`
	GossipPort int    `msgpack:"gossip_port"`
	StartedAt  int64  `msgpack:"started_at"`
}

func (r record) address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.GossipPort))
}

// Discovery keeps the member key alive in etcd for as long as the
// member is registered.
type Discovery struct {
	config *Config
	logger log.Logger

	mu          sync.RWMutex
	initialized *atomic.Bool
	registered  *atomic.Bool
	leaseLost   *atomic.Bool

	client  *clientv3.Client
	kv      clientv3.KV
	lease   clientv3.Lease
	leaseID clientv3.LeaseID
	self    record
	stop    context.CancelFunc
	done    chan struct{}
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates a new instance of Discovery with the provided configuration.
func NewDiscovery(config *Config, opts ...Option) *Discovery {
	config.applyDefaults()
	d := &Discovery{
		config:      config,
		logger:      log.DiscardLogger,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		leaseLost:   atomic.NewBool(false),
		self: record{
			Host:       config.Host,
			GossipPort: config.GossipPort,
		},
	}
	for _, opt := range opts {
		opt.Apply(d)
	}
	return d
}

// ID implements discovery.Provider.
func (x *Discovery) ID() string {
	return discovery.ProviderEtcd
}

// Initialize validates the configuration and dials etcd.
func (x *Discovery) Initialize() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	if err := x.config.Validate(); err != nil {
		return discovery.NewErrInvalidConfig(err)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   x.config.Endpoints,
		DialTimeout: x.config.DialTimeout,
		TLS:         x.config.TLS,
		Username:    x.config.Username,
		Password:    x.config.Password,
		Context:     x.config.Context,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create etcd client")
	}

	if err := x.ping(client); err != nil {
		if cerr := client.Close(); cerr != nil {
			x.logger.Warnf("failed to close etcd client: %v", cerr)
		}
		return err
	}

	prefix := x.config.prefix()
	x.client = client
	x.kv = namespace.NewKV(client.KV, prefix)
	x.lease = namespace.NewLease(client.Lease, prefix)
	x.initialized.Store(true)
	return nil
}

// Register writes the member record under a fresh lease and keeps
// the lease alive in the background.
func (x *Discovery) Register() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if x.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	ctx, cancel := context.WithTimeout(x.config.Context, x.config.Timeout)
	defer cancel()

	grant, err := x.lease.Grant(ctx, x.config.TTL)
	if err != nil {
		return errors.Wrap(err, "failed to create lease")
	}

	x.self.StartedAt = time.Now().UnixMilli()
	value, err := codec.Marshal(x.self)
	if err != nil {
		return errors.Wrap(err, "failed to encode member record")
	}

	if _, err := x.kv.Put(ctx, x.self.address(), string(value), clientv3.WithLease(grant.ID)); err != nil {
		return errors.Wrap(err, "failed to register member")
	}

	keepAliveCtx, stop := context.WithCancel(x.config.Context)
	responses, err := x.lease.KeepAlive(keepAliveCtx, grant.ID)
	if err != nil {
		stop()
		return errors.Wrap(err, "failed to start keep-alive")
	}

	x.leaseID = grant.ID
	x.stop = stop
	x.done = make(chan struct{})
	x.leaseLost.Store(false)
	go x.watchLease(keepAliveCtx, responses, x.done)

	x.registered.Store(true)
	x.logger.Infof("member %s registered in etcd (lease=%x)", x.self.address(), int64(grant.ID))
	return nil
}

// DiscoverPeers lists the gossip addresses of the other members of the cluster.
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

	resp, err := x.kv.Get(ctx, "", clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover peers")
	}

	self := x.self.address()
	peers := goset.NewThreadUnsafeSet[string]()
	for _, kv := range resp.Kvs {
		var member record
		if err := codec.Unmarshal(kv.Value, &member); err != nil {
			x.logger.Warnf("skipping malformed member record under %s: %v", string(kv.Key), err)
			continue
		}
		if addr := member.address(); addr != self {
			peers.Add(addr)
		}
	}
	return peers.ToSlice(), nil
}

// LeaseLost reports whether the keep-alive stream ended while the member
// was still registered. The member key is gone from etcd in that case.
func (x *Discovery) LeaseLost() bool {
	return x.leaseLost.Load()
}

// Deregister revokes the member lease, which deletes the member key.
func (x *Discovery) Deregister() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}

	if !x.registered.Load() {
		return discovery.ErrNotRegistered
	}

	x.stopKeepAlive()
	if x.leaseID != clientv3.NoLease {
		ctx, cancel := context.WithTimeout(x.config.Context, x.config.Timeout)
		defer cancel()
		if _, err := x.lease.Revoke(ctx, x.leaseID); err != nil {
			// the key disappears once the TTL runs out
			x.logger.Warnf("failed to revoke lease %x: %v", int64(x.leaseID), err)
		}
		x.leaseID = clientv3.NoLease
	}

	x.registered.Store(false)
	return nil
}

// Close releases the etcd client.
func (x *Discovery) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.stopKeepAlive()
	x.initialized.Store(false)
	x.registered.Store(false)

	if x.client == nil {
		return nil
	}
	client := x.client
	x.client = nil
	if err := client.Close(); err != nil {
		return errors.Wrap(err, "failed to close etcd client")
	}
	return nil
}

func (x *Discovery) ping(client *clientv3.Client) error {
	ctx, cancel := context.WithTimeout(x.config.Context, x.config.DialTimeout)
	defer cancel()
	for _, endpoint := range x.config.Endpoints {
		if _, err := client.Status(ctx, endpoint); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to connect to etcd at %v", x.config.Endpoints)
}

// watchLease drains the keep-alive stream. The stream closes when the
// context is cancelled or when etcd gives up on the lease.
func (x *Discovery) watchLease(ctx context.Context, responses <-chan *clientv3.LeaseKeepAliveResponse, done chan<- struct{}) {
	defer close(done)
	for range responses {
	}
	if ctx.Err() == nil {
		x.leaseLost.Store(true)
		x.logger.Warnf("etcd lease for member %s expired", x.self.address())
	}
}

// stopKeepAlive must be called with the lock held
func (x *Discovery) stopKeepAlive() {
	if x.stop == nil {
		return
	}
	x.stop()
	<-x.done
	x.stop = nil
	x.done = nil
}
