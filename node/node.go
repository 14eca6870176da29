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

// Package node assembles a distro member: membership, replication protocol,
// transport and the ephemeral naming service.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/tochemey/distro/cluster"
	"github.com/tochemey/distro/config"
	"github.com/tochemey/distro/consistency"
	"github.com/tochemey/distro/distro"
	"github.com/tochemey/distro/internal/compression"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/naming/endpoint"
	"github.com/tochemey/distro/transport"
)

// Node is a running distro member
type Node struct {
	config *config.Config
	logger log.Logger

	compressor compression.Compressor
	conn       *natsgo.Conn
	membership *cluster.Members
	protocol   *distro.Protocol
	storage    *naming.Storage
	service    *naming.Service
	agent      *transport.Agent
	server     *transport.Server
	endpoint   *endpoint.Endpoint
}

// New assembles a Node from the given configuration
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg.Cluster, logger.Named("discovery"))
	if err != nil {
		return nil, err
	}

	compressor, err := compression.New(cfg.Server.Compression)
	if err != nil {
		return nil, err
	}

	resolver, err := consistency.NewResolver[naming.Instance](cfg.Server.ResolverPolicy, cfg.Server.MaxTimeDiff)
	if err != nil {
		return nil, err
	}

	distroMetric, err := metric.NewDistroMetric()
	if err != nil {
		return nil, err
	}

	self := cluster.NewMember(cfg.Cluster.Host, cfg.Cluster.GossipPort, cfg.Cluster.TransportPort)
	membership := cluster.NewMembers(self, provider,
		cluster.WithLogger(logger.Named("membership")),
		cluster.WithJoinTimeout(cfg.Cluster.JoinTimeout),
		cluster.WithJoinRetryInterval(cfg.Cluster.JoinRetryInterval),
		cluster.WithMaxJoinAttempts(cfg.Cluster.MaxJoinAttempts))

	protocol, err := distro.NewProtocol(membership,
		distro.WithLogger(logger.Named("distro")),
		distro.WithMetric(distroMetric),
		distro.WithVerifyInterval(cfg.Server.VerifyInterval),
		distro.WithVerifyInitialDelay(cfg.Server.VerifyInitialDelay),
		distro.WithSyncDelay(cfg.Server.SyncDelay),
		distro.WithSyncRetryDelay(cfg.Server.SyncRetryDelay),
		distro.WithLoadRetryDelay(cfg.Server.LoadRetryDelay),
		distro.WithLoadMaxAttempts(cfg.Server.LoadMaxAttempts),
		distro.WithEngineWorkers(cfg.Server.EngineWorkers),
		distro.WithEngineQueueSize(cfg.Server.EngineQueueSize))
	if err != nil {
		return nil, err
	}

	storage := naming.NewStorage(resolver, protocol.Ring(), logger.Named("storage"), distroMetric)
	service := naming.NewService(storage, protocol,
		naming.WithServiceLogger(logger.Named("naming")),
		naming.WithSweep(cfg.Server.SweepInterval, 2*cfg.Server.MaxTimeDiff))

	return &Node{
		config:     cfg,
		logger:     logger,
		compressor: compressor,
		membership: membership,
		protocol:   protocol,
		storage:    storage,
		service:    service,
	}, nil
}

// Start connects to NATS, joins the cluster and starts serving
func (n *Node) Start(ctx context.Context) error {
	if n.conn != nil {
		return nil
	}

	address := n.config.TransportAddress()
	conn, err := connect(ctx, n.config.Cluster, address)
	if err != nil {
		return err
	}

	n.agent = transport.NewAgent(conn, address, naming.ResourceType, transport.WithLogger(n.logger.Named("transport")))
	n.server = transport.NewServer(conn, address, n.protocol,
		transport.WithLogger(n.logger.Named("transport")),
		transport.WithCompressor(n.compressor))
	n.endpoint = endpoint.New(conn, n.service, endpoint.WithLogger(n.logger.Named("endpoint")))

	holder := n.protocol.Holder()
	holder.RegisterDataStorage(naming.ResourceType, n.storage)
	holder.RegisterDataProcessor(n.storage)
	holder.RegisterTransportAgent(naming.ResourceType, n.agent)

	if err := n.server.Start(); err != nil {
		conn.Close()
		return err
	}

	if err := n.membership.Start(ctx); err != nil {
		err = multierr.Append(err, n.server.Stop())
		conn.Close()
		return err
	}

	if err := n.protocol.Start(ctx); err != nil {
		err = multierr.Combine(err, n.membership.Stop(ctx), n.server.Stop())
		conn.Close()
		return err
	}

	n.service.Start()
	if err := n.endpoint.Start(); err != nil {
		n.service.Stop()
		err = multierr.Combine(err, n.protocol.Stop(ctx), n.membership.Stop(ctx), n.server.Stop())
		conn.Close()
		return err
	}

	n.conn = conn
	n.logger.Infof("distro member=(%s) started", address)
	return nil
}

// Stop stops serving and leaves the cluster
func (n *Node) Stop(ctx context.Context) error {
	if n.conn == nil {
		return nil
	}

	n.service.Stop()
	err := multierr.Combine(
		n.endpoint.Stop(),
		n.protocol.Stop(ctx),
		n.server.Stop(),
		n.membership.Stop(ctx),
	)
	n.agent.Close()
	n.conn.Close()
	n.conn = nil
	n.logger.Infof("distro member=(%s) stopped", n.config.TransportAddress())
	return err
}

// Service returns the naming service of the member
func (n *Node) Service() *naming.Service {
	return n.service
}

// Protocol returns the replication protocol of the member
func (n *Node) Protocol() *distro.Protocol {
	return n.protocol
}

func connect(ctx context.Context, cfg config.ClusterConfig, name string) (*natsgo.Conn, error) {
	opts := natsgo.GetDefaultOptions()
	opts.Url = cfg.NatsURL
	opts.Name = name
	opts.MaxReconnect = -1

	var conn *natsgo.Conn
	retrier := retry.NewRetrier(cfg.MaxJoinAttempts, 100*time.Millisecond, cfg.JoinRetryInterval)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		var err error
		conn, err = opts.Connect()
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to nats server %s: %w", cfg.NatsURL, err)
	}
	return conn, nil
}
