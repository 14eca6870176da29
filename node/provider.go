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

package node

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/tochemey/distro/config"
	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/discovery/consul"
	"github.com/tochemey/distro/discovery/etcd"
	"github.com/tochemey/distro/discovery/kubernetes"
	"github.com/tochemey/distro/discovery/nats"
	"github.com/tochemey/distro/discovery/static"
	"github.com/tochemey/distro/log"
)

// newProvider builds the discovery provider named by the cluster config
func newProvider(ctx context.Context, cfg config.ClusterConfig, logger log.Logger) (discovery.Provider, error) {
	switch cfg.Discovery {
	case discovery.ProviderStatic:
		self := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.GossipPort))
		hosts := cfg.Static.Hosts
		if len(hosts) == 0 {
			hosts = []string{self}
		}
		return static.NewDiscovery(&static.Config{Hosts: hosts, Self: self}), nil
	case discovery.ProviderEtcd:
		return etcd.NewDiscovery(&etcd.Config{
			Context:     ctx,
			Endpoints:   cfg.Etcd.Endpoints,
			ClusterName: cfg.Etcd.ClusterName,
			Host:        cfg.Host,
			GossipPort:  cfg.GossipPort,
			TTL:         cfg.Etcd.TTL,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		}, etcd.WithLogger(logger)), nil
	case discovery.ProviderConsul:
		return consul.NewDiscovery(&consul.Config{
			Context:     ctx,
			Address:     cfg.Consul.Address,
			Datacenter:  cfg.Consul.Datacenter,
			Token:       cfg.Consul.Token,
			ClusterName: cfg.Consul.ClusterName,
			Host:        cfg.Host,
			GossipPort:  cfg.GossipPort,
			OnlyPassing: cfg.Consul.OnlyPassing,
		}, consul.WithLogger(logger)), nil
	case discovery.ProviderNats:
		server := cfg.Nats.Server
		if server == "" {
			server = cfg.NatsURL
		}
		return nats.NewDiscovery(&nats.Config{
			Server:          server,
			ClusterName:     cfg.Nats.ClusterName,
			Host:            cfg.Host,
			GossipPort:      cfg.GossipPort,
			MaxJoinAttempts: cfg.MaxJoinAttempts,
		}, nats.WithLogger(logger)), nil
	case discovery.ProviderKubernetes:
		return kubernetes.NewDiscovery(&kubernetes.Config{
			Context:        ctx,
			Namespace:      cfg.Kubernetes.Namespace,
			PodLabels:      cfg.Kubernetes.PodLabels,
			GossipPortName: cfg.Kubernetes.GossipPortName,
			Self:           cfg.Kubernetes.PodName,
		}, kubernetes.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown discovery provider %q", cfg.Discovery)
	}
}
