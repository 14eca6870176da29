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

package distro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/distro/cluster"
	derrors "github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/workerpool"
	"github.com/tochemey/distro/log"
)

const peerAddress = "127.0.0.2:7848"

func newTestMembership(withPeer bool) *cluster.Static {
	self := cluster.NewMember("127.0.0.1", 3322, 7848)
	if !withPeer {
		return cluster.NewStatic(self)
	}
	return cluster.NewStatic(self, cluster.NewMember("127.0.0.2", 3322, 7848))
}

func newTestProtocol(t *testing.T, membership cluster.Membership, opts ...Option) *Protocol {
	t.Helper()
	opts = append([]Option{
		WithLogger(log.DiscardLogger),
		WithVerifyInterval(time.Hour),
		WithVerifyInitialDelay(time.Hour),
		WithSyncDelay(20 * time.Millisecond),
		WithSyncRetryDelay(20 * time.Millisecond),
		WithLoadRetryDelay(10 * time.Millisecond),
		WithLoadMaxAttempts(2),
		WithEngineWorkers(2),
		WithEngineQueueSize(16),
	}, opts...)
	protocol, err := NewProtocol(membership, opts...)
	require.NoError(t, err)
	return protocol
}

func register(protocol *Protocol, storage DataStorage, processor DataProcessor, agent TransportAgent) {
	protocol.Holder().RegisterDataStorage(testType, storage)
	protocol.Holder().RegisterDataProcessor(processor)
	protocol.Holder().RegisterTransportAgent(testType, agent)
}

func TestProtocolLoad(t *testing.T) {
	t.Run("With a lone member", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(false))
		storage := newFakeStorage(false)
		register(protocol, storage, newFakeProcessor(true), new(mockAgent))

		require.False(t, protocol.IsInitialized())
		require.NoError(t, protocol.Start(ctx))
		require.NoError(t, protocol.Start(ctx))
		require.Eventually(t, protocol.IsInitialized, time.Second, 10*time.Millisecond)
		require.NoError(t, protocol.Stop(ctx))
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a peer serving the snapshot", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		storage := newFakeStorage(false)
		processor := newFakeProcessor(true)
		agent := new(mockAgent)
		agent.On("GetDatumSnapshot", mock.Anything, peerAddress).
			Return(nil, errors.New("no responders")).Once()
		agent.On("GetDatumSnapshot", mock.Anything, peerAddress).
			Return(NewData(NewKey("", testType), Snapshot, []byte("snapshot")), nil)
		register(protocol, storage, processor, agent)

		require.NoError(t, protocol.Start(ctx))
		require.Eventually(t, storage.IsFinishInitial, time.Second, 10*time.Millisecond)
		assert.Equal(t, 1, processor.snapshotCount())
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a snapshot that cannot be applied", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		storage := newFakeStorage(false)
		processor := newFakeProcessor(false)
		agent := new(mockAgent)
		agent.On("GetDatumSnapshot", mock.Anything, peerAddress).
			Return(NewData(NewKey("", testType), Snapshot, []byte("corrupted")), nil)
		register(protocol, storage, processor, agent)

		require.NoError(t, protocol.Start(ctx))
		require.Eventually(t, func() bool { return processor.snapshotCount() >= 3 }, time.Second, 10*time.Millisecond)
		assert.False(t, storage.IsFinishInitial())
		require.NoError(t, protocol.Stop(ctx))
	})
}

func TestProtocolSync(t *testing.T) {
	t.Run("With changes coalesced within the sync delay", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		storage := newFakeStorage(true)
		storage.put("svc", []byte("datum"))
		agent := new(mockAgent)
		agent.On("SyncData", mock.Anything, mock.MatchedBy(func(data *Data) bool {
			return data.Key.ResourceKey == "svc" && data.Type == Change && string(data.Content) == "datum"
		}), peerAddress).Return(true)
		register(protocol, storage, newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		key := NewKey("svc", testType)
		protocol.Sync(key, Change)
		protocol.Sync(key, Change)

		require.Eventually(t, func() bool {
			return agent.count("SyncData") > 0
		}, time.Second, 5*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		agent.AssertNumberOfCalls(t, "SyncData", 1)
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a failed push retried once", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		storage := newFakeStorage(true)
		storage.put("svc", []byte("datum"))
		agent := new(mockAgent)
		agent.On("SyncData", mock.Anything, matchKey("svc"), peerAddress).Return(false)
		register(protocol, storage, newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		protocol.Sync(NewKey("svc", testType), Change)

		require.Eventually(t, func() bool {
			return agent.count("SyncData") == 2
		}, time.Second, 5*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		agent.AssertNumberOfCalls(t, "SyncData", 2)
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a callback transport", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		storage := newFakeStorage(true)
		storage.put("svc", []byte("datum"))
		agent := &mockAgent{callback: true}
		agent.On("SyncDataWithCallback", mock.Anything, matchKey("svc"), peerAddress, mock.Anything).
			Run(func(args mock.Arguments) { args.Get(3).(Callback).OnFailed(errors.New("timeout")) })
		register(protocol, storage, newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		protocol.Sync(NewKey("svc", testType), Delete)

		require.Eventually(t, func() bool {
			return agent.count("SyncDataWithCallback") == 2
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With an unknown key", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		protocol.Sync(NewKey("svc", testType), Change)
		protocol.SyncToTarget(NewKey("svc", testType), Change, "127.0.0.9:7848", 0)
		time.Sleep(100 * time.Millisecond)
		agent.AssertNotCalled(t, "SyncData", mock.Anything, mock.Anything, mock.Anything)
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With the protocol not started", func(t *testing.T) {
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)
		protocol.Sync(NewKey("svc", testType), Change)
		agent.AssertNotCalled(t, "SyncData", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProtocolPush(t *testing.T) {
	matchContent := func(content string) any {
		return mock.MatchedBy(func(data *Data) bool { return string(data.Content) == content })
	}

	t.Run("With every push delivered in order", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		agent.On("SyncData", mock.Anything, matchKey("svc"), peerAddress).Return(true)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		key := NewKey("svc", testType)
		protocol.Push(NewData(key, Add, []byte("1")))
		protocol.Push(NewData(key, Delete, []byte("2")))
		protocol.Push(NewData(key, Add, []byte("3")))

		require.Eventually(t, func() bool {
			return agent.count("SyncData") == 3
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"1", "2", "3"}, agent.contents("SyncData"))
		assert.Zero(t, protocol.outbox.size())
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a failed push retried before the later ones", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		agent.On("SyncData", mock.Anything, matchContent("1"), peerAddress).Return(false).Once()
		agent.On("SyncData", mock.Anything, mock.Anything, peerAddress).Return(true)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		key := NewKey("svc", testType)
		protocol.Push(NewData(key, Add, []byte("1")))
		protocol.Push(NewData(key, Add, []byte("2")))

		require.Eventually(t, func() bool {
			return agent.count("SyncData") == 3
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"1", "1", "2"}, agent.contents("SyncData"))
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a push dropped after its retry", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		agent.On("SyncData", mock.Anything, matchContent("1"), peerAddress).Return(false)
		agent.On("SyncData", mock.Anything, matchContent("2"), peerAddress).Return(true)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		key := NewKey("svc", testType)
		protocol.Push(NewData(key, Add, []byte("1")))
		protocol.Push(NewData(key, Add, []byte("2")))

		require.Eventually(t, func() bool {
			return agent.count("SyncData") == 3
		}, time.Second, 5*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, []string{"1", "1", "2"}, agent.contents("SyncData"))
		assert.Zero(t, protocol.outbox.size())
		require.NoError(t, protocol.Stop(ctx))
	})
	t.Run("With a member that left the cluster", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true))
		agent := new(mockAgent)
		register(protocol, newFakeStorage(true), newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		protocol.PushToTarget(NewData(NewKey("svc", testType), Add, []byte("1")), "127.0.0.9:7848", 0)
		require.Eventually(t, func() bool {
			return protocol.outbox.size() == 0
		}, time.Second, 5*time.Millisecond)
		agent.AssertNotCalled(t, "SyncData", mock.Anything, mock.Anything, mock.Anything)
		require.NoError(t, protocol.Stop(ctx))
	})
}

func TestProtocolVerify(t *testing.T) {
	t.Run("With a mismatch pushing the key", func(t *testing.T) {
		ctx := context.Background()
		protocol := newTestProtocol(t, newTestMembership(true),
			WithVerifyInterval(50*time.Millisecond),
			WithVerifyInitialDelay(10*time.Millisecond))
		storage := newFakeStorage(true)
		storage.put("svc", []byte("datum"))
		storage.verify = verifyItems(t, "svc")
		agent := new(mockAgent)
		agent.On("SyncVerifyData", mock.Anything, matchKey("svc"), peerAddress).Return(false)
		agent.On("SyncData", mock.Anything, matchKey("svc"), peerAddress).Return(true)
		register(protocol, storage, newFakeProcessor(true), agent)

		require.NoError(t, protocol.Start(ctx))
		require.Eventually(t, func() bool {
			data := agent.lastData("SyncData")
			return data != nil && data.Type == Change
		}, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, protocol.Stop(ctx))
	})
}

func TestVerifyScheduler(t *testing.T) {
	newVerifyScheduler := func(t *testing.T, holder *ComponentHolder, engine *workerpool.WorkerPool) *VerifyScheduler {
		t.Helper()
		return &VerifyScheduler{
			holder:     holder,
			membership: newTestMembership(true),
			engine:     engine,
			logger:     log.DiscardLogger,
		}
	}

	t.Run("With a storage that has not finished its initial load", func(t *testing.T) {
		holder := NewComponentHolder()
		storage := newFakeStorage(false)
		storage.verify = verifyItems(t, "svc")
		agent := new(mockAgent)
		holder.RegisterDataStorage(testType, storage)
		holder.RegisterTransportAgent(testType, agent)
		engine := workerpool.New()
		engine.Start()
		defer engine.Stop()

		newVerifyScheduler(t, holder, engine).Tick(context.Background())
		assert.Zero(t, engine.Pending())
		assert.Zero(t, engine.Executed())
	})
	t.Run("With an empty verify payload", func(t *testing.T) {
		holder := NewComponentHolder()
		holder.RegisterDataStorage(testType, newFakeStorage(true))
		holder.RegisterTransportAgent(testType, new(mockAgent))
		engine := workerpool.New()
		engine.Start()
		defer engine.Stop()

		newVerifyScheduler(t, holder, engine).Tick(context.Background())
		assert.Zero(t, engine.Pending())
		assert.Zero(t, engine.Executed())
	})
	t.Run("With one task per member and resource type", func(t *testing.T) {
		holder := NewComponentHolder()
		storage := newFakeStorage(true)
		storage.verify = verifyItems(t, "a", "b")
		agent := new(mockAgent)
		agent.On("SyncVerifyData", mock.Anything, mock.Anything, peerAddress).Return(true)
		holder.RegisterDataStorage(testType, storage)
		holder.RegisterTransportAgent(testType, agent)
		engine := workerpool.New()
		engine.Start()
		defer engine.Stop()

		newVerifyScheduler(t, holder, engine).Tick(context.Background())
		require.Eventually(t, func() bool { return engine.Executed() == 1 }, time.Second, 5*time.Millisecond)
		agent.AssertNumberOfCalls(t, "SyncVerifyData", 2)
	})
	t.Run("With no transport agent", func(t *testing.T) {
		holder := NewComponentHolder()
		storage := newFakeStorage(true)
		storage.verify = verifyItems(t, "svc")
		holder.RegisterDataStorage(testType, storage)
		engine := workerpool.New()
		engine.Start()
		defer engine.Stop()

		newVerifyScheduler(t, holder, engine).Tick(context.Background())
		assert.Zero(t, engine.Executed())
	})
}

func TestProtocolHandlers(t *testing.T) {
	protocol := newTestProtocol(t, newTestMembership(false))
	storage := newFakeStorage(true)
	storage.put("svc", []byte("datum"))
	processor := newFakeProcessor(true)
	processor.verified["svc"] = true
	register(protocol, storage, processor, new(mockAgent))

	t.Run("With OnReceive", func(t *testing.T) {
		assert.True(t, protocol.OnReceive(NewData(NewKey("svc", testType), Change, nil)))
		assert.False(t, protocol.OnReceive(NewData(NewKey("svc", "unknown"), Change, nil)))
		require.Len(t, processor.received, 1)
	})
	t.Run("With OnVerify", func(t *testing.T) {
		assert.True(t, protocol.OnVerify(NewData(NewKey("svc", testType), Verify, nil), peerAddress))
		assert.False(t, protocol.OnVerify(NewData(NewKey("other", testType), Verify, nil), peerAddress))
		assert.False(t, protocol.OnVerify(NewData(NewKey("svc", "unknown"), Verify, nil), peerAddress))
	})
	t.Run("With OnQuery", func(t *testing.T) {
		data, err := protocol.OnQuery(NewKey("svc", testType))
		require.NoError(t, err)
		assert.Equal(t, []byte("datum"), data.Content)

		data, err = protocol.OnQuery(NewKey("missing", testType))
		require.NoError(t, err)
		assert.Nil(t, data)

		_, err = protocol.OnQuery(NewKey("svc", "unknown"))
		require.ErrorIs(t, err, derrors.ErrUnknownResourceType)
	})
	t.Run("With OnSnapshot", func(t *testing.T) {
		data, err := protocol.OnSnapshot(testType)
		require.NoError(t, err)
		assert.Equal(t, Snapshot, data.Type)

		_, err = protocol.OnSnapshot("unknown")
		require.ErrorIs(t, err, derrors.ErrUnknownResourceType)
	})
	t.Run("With QueryFromRemote", func(t *testing.T) {
		agent := new(mockAgent)
		key := NewKey("svc", testType).WithTarget(peerAddress)
		agent.On("GetData", mock.Anything, key, peerAddress).Return(NewData(key, Query, []byte("remote")), nil)
		protocol.Holder().RegisterTransportAgent(testType, agent)

		data, err := protocol.QueryFromRemote(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, []byte("remote"), data.Content)

		_, err = protocol.QueryFromRemote(context.Background(), NewKey("svc", "unknown"))
		require.ErrorIs(t, err, derrors.ErrNoTransportAgent)
	})
}

func TestData(t *testing.T) {
	key := NewKey("public@@DEFAULT_GROUP@@orders", testType)
	assert.Equal(t, testType+"@@public@@DEFAULT_GROUP@@orders", key.String())
	assert.Equal(t, peerAddress+"@@"+testType+"@@public@@DEFAULT_GROUP@@orders", key.WithTarget(peerAddress).String())
	assert.Empty(t, key.TargetServer)

	for op, name := range map[DataOperation]string{
		Add: "ADD", Change: "CHANGE", Delete: "DELETE", Verify: "VERIFY", Snapshot: "SNAPSHOT", Query: "QUERY",
	} {
		assert.Equal(t, name, op.String())
	}
	assert.Equal(t, "DataOperation(42)", DataOperation(42).String())

	data, err := NewVerifyData(key, "abc")
	require.NoError(t, err)
	verifyData, err := DecodeVerifyData(data)
	require.NoError(t, err)
	assert.Equal(t, &VerifyData{Key: key.ResourceKey, Checksum: "abc"}, verifyData)

	envelope := data.ToEnvelope("127.0.0.1:7848")
	assert.Equal(t, "127.0.0.1:7848", envelope.Source)
	assert.Equal(t, data, envelope.Data())

	_, err = DecodeVerifyData(NewData(key, Verify, []byte{0xc1}))
	require.Error(t, err)
}

func TestDelayedTrigger(t *testing.T) {
	trigger := newDelayedTrigger(time.Second, time.Minute)
	next, err := trigger.NextFireTime(0)
	require.NoError(t, err)
	assert.Equal(t, time.Second.Nanoseconds(), next)

	next, err = trigger.NextFireTime(next)
	require.NoError(t, err)
	assert.Equal(t, (time.Second + time.Minute).Nanoseconds(), next)
	assert.Contains(t, trigger.Description(), "DelayedTrigger")
}
