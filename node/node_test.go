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
	"net"
	"strconv"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/distro/client"
	"github.com/tochemey/distro/client/natsremote"
	"github.com/tochemey/distro/config"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/redo"
)

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()
	serv, err := natsserver.NewServer(&natsserver.Options{
		Host: "127.0.0.1",
		Port: -1,
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}
	t.Cleanup(serv.Shutdown)
	return serv
}

func testConfig(natsURL string, gossipPort, transportPort int, seed string) *config.Config {
	cfg := config.Default()
	cfg.Cluster.Host = "127.0.0.1"
	cfg.Cluster.GossipPort = gossipPort
	cfg.Cluster.TransportPort = transportPort
	cfg.Cluster.NatsURL = natsURL
	cfg.Cluster.Static.Hosts = []string{seed}
	cfg.Cluster.JoinTimeout = 5 * time.Second
	cfg.Cluster.JoinRetryInterval = 100 * time.Millisecond
	cfg.Server.SyncDelay = 50 * time.Millisecond
	cfg.Server.SyncRetryDelay = 100 * time.Millisecond
	cfg.Server.VerifyInterval = 200 * time.Millisecond
	cfg.Server.VerifyInitialDelay = 200 * time.Millisecond
	cfg.Server.LoadRetryDelay = 100 * time.Millisecond
	cfg.Server.MaxTimeDiff = 100 * time.Millisecond
	cfg.Server.EngineWorkers = 2
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	ctx := context.Background()
	node, err := New(ctx, cfg, log.DiscardLogger)
	require.NoError(t, err)
	require.NoError(t, node.Start(ctx))
	require.NoError(t, node.Start(ctx))
	return node
}

func TestNode(t *testing.T) {
	ctx := context.Background()
	serv := startNatsServer(t)
	ports := dynaport.Get(4)
	seed := net.JoinHostPort("127.0.0.1", strconv.Itoa(ports[0]))

	first := startNode(t, testConfig(serv.ClientURL(), ports[0], ports[1], seed))
	second := startNode(t, testConfig(serv.ClientURL(), ports[2], ports[3], seed))

	require.Eventually(t, func() bool {
		return len(first.Protocol().Ring().Members()) == 2 && len(second.Protocol().Ring().Members()) == 2
	}, 5*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return first.Protocol().IsInitialized() && second.Protocol().IsInitialized()
	}, 5*time.Second, 50*time.Millisecond)

	key := naming.ServiceKey(naming.DefaultNamespace, naming.DefaultGroup, "orders")

	t.Run("With a local registration replicated to the peer", func(t *testing.T) {
		require.NoError(t, first.Service().Register(ctx, key, naming.NewInstance("10.0.0.1", 8080)))
		require.Eventually(t, func() bool {
			return len(second.Service().Instances(key)) == 1
		}, 5*time.Second, 50*time.Millisecond)
	})
	t.Run("With a client registering through the endpoint", func(t *testing.T) {
		redoService := redo.NewService(redo.WithLogger(log.DiscardLogger), redo.WithDelay(100*time.Millisecond))
		remote := natsremote.New(serv.ClientURL(), redoService, natsremote.WithLogger(log.DiscardLogger))
		proxy, err := client.NewEphemeralProxy(remote, redoService)
		require.NoError(t, err)
		require.NoError(t, remote.Connect(ctx))
		redoService.Start()
		t.Cleanup(func() {
			redoService.Shutdown()
			remote.Close()
		})

		payments := naming.ServiceKey(naming.DefaultNamespace, naming.DefaultGroup, "payments")
		instance := naming.NewInstance("10.0.0.2", 9090)
		require.NoError(t, proxy.RegisterService(ctx, payments, instance))

		require.Eventually(t, func() bool {
			return len(first.Service().Instances(payments)) == 1 && len(second.Service().Instances(payments)) == 1
		}, 5*time.Second, 50*time.Millisecond)

		instances, err := proxy.Subscribe(ctx, payments)
		require.NoError(t, err)
		assert.Len(t, instances, 1)
	})

	require.NoError(t, second.Stop(ctx))
	require.NoError(t, second.Stop(ctx))
	require.NoError(t, first.Stop(ctx))
}

func TestNodeInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Compression = "gzip"
	_, err := New(context.Background(), cfg, log.DiscardLogger)
	require.Error(t, err)
}

func TestNodeProviders(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	for _, name := range []string{"static", "etcd", "consul", "nats", "kubernetes"} {
		cfg.Cluster.Discovery = name
		provider, err := newProvider(ctx, cfg.Cluster, log.DiscardLogger)
		require.NoError(t, err)
		assert.Equal(t, name, provider.ID())
	}
	cfg.Cluster.Discovery = "mdns"
	_, err := newProvider(ctx, cfg.Cluster, log.DiscardLogger)
	require.Error(t, err)
}
