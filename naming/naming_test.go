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

package naming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/distro/consistency"
	"github.com/tochemey/distro/distro"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/codec"
	"github.com/tochemey/distro/log"
)

const testWindow = 20 * time.Millisecond

type staticOracle struct {
	self  string
	owned map[string]bool
}

func (o staticOracle) Owner(key string) string {
	if o.owned[key] {
		return o.self
	}
	return "127.0.0.9:7848"
}

func (o staticOracle) Responsible(key string) bool {
	return o.owned[key]
}

type recordingSyncer struct {
	mu     sync.Mutex
	pushed []*distro.Data
}

func (r *recordingSyncer) Push(data *distro.Data) {
	r.mu.Lock()
	r.pushed = append(r.pushed, data)
	r.mu.Unlock()
}

func (r *recordingSyncer) last() *distro.Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed[len(r.pushed)-1]
}

// drain returns the pushes not delivered yet
func (r *recordingSyncer) drain() []*distro.Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	pushed := r.pushed
	r.pushed = nil
	return pushed
}

// member is a naming service with its own storage. Its pushes are held
// until delivered to a peer.
type member struct {
	storage *Storage
	service *Service
	syncer  *recordingSyncer
}

func newMember(owned ...string) *member {
	storage := newTestStorage(owned...)
	syncer := new(recordingSyncer)
	return &member{
		storage: storage,
		service: NewService(storage, syncer, WithServiceLogger(log.DiscardLogger)),
		syncer:  syncer,
	}
}

// deliver hands the pending pushes of m to peer and returns their number
func (m *member) deliver(t *testing.T, peer *member) int {
	t.Helper()
	pushed := m.syncer.drain()
	for _, data := range pushed {
		require.True(t, peer.storage.ProcessData(data))
	}
	return len(pushed)
}

// verify runs one verify round of m against peer: every mismatching key is
// sent in full. It returns the number of repaired keys.
func (m *member) verify(t *testing.T, peer *member) int {
	t.Helper()
	repaired := 0
	for _, item := range m.storage.GetVerifyData() {
		if peer.storage.ProcessVerifyData(item, "127.0.0.1:7848") {
			continue
		}
		data, err := m.storage.GetDistroData(item.Key)
		require.NoError(t, err)
		require.NotNil(t, data)
		require.True(t, peer.storage.ProcessData(data))
		repaired++
	}
	return repaired
}

type notification struct {
	key        string
	subscriber string
	instances  []Instance
}

type recordingNotifier struct {
	notifications chan notification
}

func (r *recordingNotifier) Notify(key, subscriber string, instances []Instance) error {
	r.notifications <- notification{key: key, subscriber: subscriber, instances: instances}
	return nil
}

func newTestStorage(owned ...string) *Storage {
	oracle := staticOracle{self: "127.0.0.1:7848", owned: make(map[string]bool)}
	for _, key := range owned {
		oracle.owned[key] = true
	}
	return NewStorage(consistency.NewUnionResolver[Instance](testWindow), oracle, log.DiscardLogger, nil)
}

var ordersKey = ServiceKey("", "", "orders")

func TestInstance(t *testing.T) {
	instance := NewInstance("10.0.0.1", 8080)
	assert.Equal(t, "10.0.0.1#8080#DEFAULT", instance.Identity())
	assert.Equal(t, "10.0.0.1:8080", instance.Address())
	require.NoError(t, instance.Validate())

	other := instance
	other.Metadata = map[string]string{"zone": "a", "version": "2"}
	assert.Equal(t, instance.Identity(), other.Identity())
	assert.NotEqual(t, instance.Digest(), other.Digest())
	assert.Contains(t, other.Digest(), "|version=2|zone=a")

	unnamed := instance
	unnamed.ClusterName = ""
	assert.Equal(t, instance.Identity(), unnamed.Identity())

	invalid := NewInstance("", 0)
	require.ErrorIs(t, invalid.Validate(), errors.ErrInvalidRecord)
	invalid = NewInstance("10.0.0.1", 70000)
	require.ErrorIs(t, invalid.Validate(), errors.ErrInvalidRecord)
}

func TestServiceKey(t *testing.T) {
	assert.Equal(t, "public@@DEFAULT_GROUP@@orders", ordersKey)
	assert.Equal(t, "dev@@payments@@orders", ServiceKey("dev", "payments", "orders"))

	namespace, group, service, err := ParseServiceKey("dev@@payments@@orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "payments", "orders"}, []string{namespace, group, service})

	for _, key := range []string{"", "orders", "a@@b", "a@@@@c", "a@@b@@c@@d"} {
		_, _, _, err := ParseServiceKey(key)
		assert.Error(t, err, key)
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	a := NewInstance("10.0.0.1", 8080)
	b := NewInstance("10.0.0.2", 8080)

	t.Run("With register and deregister", func(t *testing.T) {
		syncer := new(recordingSyncer)
		service := NewService(newTestStorage(), syncer, WithServiceLogger(log.DiscardLogger))

		require.NoError(t, service.Register(ctx, ordersKey, a, b))
		assert.Equal(t, []Instance{a, b}, service.Instances(ordersKey))
		assert.Equal(t, []string{ordersKey}, service.Services())
		assert.Equal(t, distro.NewKey(ordersKey, ResourceType), syncer.last().Key)
		assert.Equal(t, distro.Add, syncer.last().Type)

		// a removal right after the registration falls in the window
		err := service.Deregister(ctx, ordersKey, b)
		require.ErrorIs(t, err, errors.ErrOperationDiscarded)
		assert.Len(t, service.Instances(ordersKey), 2)

		time.Sleep(2 * testWindow)
		require.NoError(t, service.Deregister(ctx, ordersKey, b))
		assert.Equal(t, []Instance{a}, service.Instances(ordersKey))
		assert.Equal(t, distro.Delete, syncer.last().Type)

		var op Operation
		require.NoError(t, codec.Unmarshal(syncer.last().Content, &op))
		assert.Equal(t, []Instance{b}, op.Records)

		time.Sleep(2 * testWindow)
		require.NoError(t, service.Deregister(ctx, ordersKey, a))
		assert.Empty(t, service.Instances(ordersKey))
		assert.Equal(t, distro.Delete, syncer.last().Type)
		assert.Len(t, syncer.pushed, 3)
	})
	t.Run("With deregistration of unknown instances", func(t *testing.T) {
		syncer := new(recordingSyncer)
		service := NewService(newTestStorage(), syncer, WithServiceLogger(log.DiscardLogger))
		require.NoError(t, service.Deregister(ctx, ordersKey, a))
		assert.Empty(t, syncer.pushed)
		assert.Nil(t, service.Instances(ordersKey))
	})
	t.Run("With invalid input", func(t *testing.T) {
		service := NewService(newTestStorage(), new(recordingSyncer), WithServiceLogger(log.DiscardLogger))
		require.ErrorIs(t, service.Register(ctx, "orders", a), errors.ErrInvalidRecord)
		require.ErrorIs(t, service.Register(ctx, ordersKey), errors.ErrInvalidRecord)
		require.ErrorIs(t, service.Register(ctx, ordersKey, NewInstance("", 1)), errors.ErrInvalidRecord)
		require.ErrorIs(t, service.Deregister(ctx, ordersKey, NewInstance("10.0.0.1", 0)), errors.ErrInvalidRecord)
	})
	t.Run("With subscribers", func(t *testing.T) {
		service := NewService(newTestStorage(), new(recordingSyncer), WithServiceLogger(log.DiscardLogger))
		service.Subscribe(ordersKey, "client-1")
		service.Subscribe(ordersKey, "client-1")
		service.Subscribe(ordersKey, "client-2")
		assert.ElementsMatch(t, []string{"client-1", "client-2"}, service.Subscribers(ordersKey))

		service.Unsubscribe(ordersKey, "client-1")
		service.Unsubscribe("unknown", "client-1")
		assert.Equal(t, []string{"client-2"}, service.Subscribers(ordersKey))
		service.Unsubscribe(ordersKey, "client-2")
		assert.Nil(t, service.Subscribers(ordersKey))
	})
	t.Run("With subscribers notified of changes", func(t *testing.T) {
		storage := newTestStorage()
		service := NewService(storage, new(recordingSyncer), WithServiceLogger(log.DiscardLogger))
		notifier := &recordingNotifier{notifications: make(chan notification, 16)}
		service.SetNotifier(notifier)
		service.Start()
		defer service.Stop()

		service.Subscribe(ordersKey, "client-1")
		require.NoError(t, service.Register(ctx, ordersKey, a))

		select {
		case actual := <-notifier.notifications:
			assert.Equal(t, notification{key: ordersKey, subscriber: "client-1", instances: []Instance{a}}, actual)
		case <-time.After(time.Second):
			t.Fatal("no notification")
		}

		// a change replicated from a peer is notified as well
		data, err := NewOperationData(ordersKey, consistency.NewAdd(time.Now(), b))
		require.NoError(t, err)
		require.True(t, storage.ProcessData(data))
		select {
		case actual := <-notifier.notifications:
			assert.Equal(t, []Instance{a, b}, actual.instances)
		case <-time.After(time.Second):
			t.Fatal("no notification")
		}

		// no subscriber, no notification
		paymentsKey := ServiceKey("", "", "payments")
		require.NoError(t, service.Register(ctx, paymentsKey, a))
		service.SetNotifier(nil)
		require.NoError(t, service.Register(ctx, ordersKey, NewInstance("10.0.0.3", 8080)))
		select {
		case actual := <-notifier.notifications:
			t.Fatalf("unexpected notification of key=(%s)", actual.key)
		case <-time.After(50 * time.Millisecond):
		}
	})
	t.Run("With the sweeper evicting empty services", func(t *testing.T) {
		storage := newTestStorage()
		service := NewService(storage, new(recordingSyncer),
			WithServiceLogger(log.DiscardLogger),
			WithSweep(10*time.Millisecond, testWindow))

		require.NoError(t, service.Register(ctx, ordersKey, a))
		time.Sleep(2 * testWindow)
		require.NoError(t, service.Deregister(ctx, ordersKey, a))

		service.Start()
		require.Eventually(t, func() bool {
			return len(service.Services()) == 0
		}, time.Second, 10*time.Millisecond)
		service.Stop()
	})
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	a := NewInstance("10.0.0.1", 8080)
	b := NewInstance("10.0.0.2", 8080)
	paymentsKey := ServiceKey("", "", "payments")

	t.Run("With verify data of owned keys only", func(t *testing.T) {
		storage := newTestStorage(ordersKey)
		service := NewService(storage, new(recordingSyncer), WithServiceLogger(log.DiscardLogger))
		require.NoError(t, service.Register(ctx, ordersKey, a))
		require.NoError(t, service.Register(ctx, paymentsKey, a))

		items := storage.GetVerifyData()
		require.Len(t, items, 1)
		verifyData, err := distro.DecodeVerifyData(items[0])
		require.NoError(t, err)
		datum, _ := storage.Get(ordersKey)
		assert.Equal(t, &distro.VerifyData{Key: ordersKey, Checksum: datum.Checksum()}, verifyData)
		assert.Equal(t, ResourceType, items[0].Key.ResourceType)
	})
	t.Run("With verify of a remote digest", func(t *testing.T) {
		owner := newTestStorage(ordersKey)
		replica := newTestStorage()
		require.NoError(t, NewService(owner, new(recordingSyncer), WithServiceLogger(log.DiscardLogger)).Register(ctx, ordersKey, a, b))

		items := owner.GetVerifyData()
		require.Len(t, items, 1)
		assert.False(t, replica.ProcessVerifyData(items[0], "127.0.0.1:7848"))

		data, err := owner.GetDistroData(distro.NewKey(ordersKey, ResourceType))
		require.NoError(t, err)
		require.True(t, replica.ProcessData(data))
		assert.True(t, replica.ProcessVerifyData(items[0], "127.0.0.1:7848"))

		// the owner never accepts a digest of its own key
		assert.True(t, owner.ProcessVerifyData(items[0], "127.0.0.2:7848"))
		assert.False(t, replica.ProcessVerifyData(distro.NewData(items[0].Key, distro.Verify, []byte{0xc1}), "127.0.0.1:7848"))
	})
	t.Run("With operations replicated to a peer", func(t *testing.T) {
		owner, replica := newMember(ordersKey), newMember()

		require.NoError(t, owner.service.Register(ctx, ordersKey, a, b))
		assert.Equal(t, 1, owner.deliver(t, replica))
		datum, ok := replica.storage.Get(ordersKey)
		require.True(t, ok)
		assert.Equal(t, []Instance{a, b}, datum.Values())

		time.Sleep(2 * testWindow)
		require.NoError(t, owner.service.Deregister(ctx, ordersKey, b))
		assert.Equal(t, 1, owner.deliver(t, replica))
		datum, _ = replica.storage.Get(ordersKey)
		assert.Equal(t, []Instance{a}, datum.Values())
		ownerDatum, _ := owner.storage.Get(ordersKey)
		assert.Equal(t, ownerDatum.Checksum(), datum.Checksum())

		time.Sleep(2 * testWindow)
		require.NoError(t, owner.service.Deregister(ctx, ordersKey, a))
		assert.Equal(t, 1, owner.deliver(t, replica))
		datum, ok = replica.storage.Get(ordersKey)
		require.True(t, ok)
		assert.Zero(t, datum.Len())
		assert.Zero(t, owner.verify(t, replica))

		// the emptied key is evicted by the sweeper only
		assert.Equal(t, 1, replica.storage.Sweep(0))
		_, ok = replica.storage.Get(ordersKey)
		assert.False(t, ok)

		key := distro.NewKey(ordersKey, ResourceType)
		missing, err := owner.storage.GetDistroData(distro.NewKey("unknown", ResourceType))
		require.NoError(t, err)
		assert.Nil(t, missing)

		assert.False(t, replica.storage.ProcessData(distro.NewData(key, distro.Change, []byte("garbage"))))
		assert.False(t, replica.storage.ProcessData(distro.NewData(key, distro.Add, []byte("garbage"))))
		assert.False(t, replica.storage.ProcessData(distro.NewData(key, distro.Verify, nil)))
	})
	t.Run("With a removal and an unrelated registration on two members", func(t *testing.T) {
		c := NewInstance("10.0.0.3", 8080)
		for _, removalFirst := range []bool{true, false} {
			first, second := newMember(ordersKey), newMember()

			require.NoError(t, first.service.Register(ctx, ordersKey, a, b))
			first.deliver(t, second)

			time.Sleep(3 * testWindow)
			require.NoError(t, second.service.Deregister(ctx, ordersKey, b))
			require.NoError(t, first.service.Register(ctx, ordersKey, c))

			if removalFirst {
				second.deliver(t, first)
				first.deliver(t, second)
			} else {
				first.deliver(t, second)
				second.deliver(t, first)
			}

			for _, m := range []*member{first, second} {
				datum, ok := m.storage.Get(ordersKey)
				require.True(t, ok)
				assert.Equal(t, []Instance{a, c}, datum.Values())
			}
			assert.Zero(t, first.verify(t, second))
		}
	})
	t.Run("With a lost removal repaired by one verify round", func(t *testing.T) {
		owner, replica := newMember(ordersKey), newMember()

		require.NoError(t, owner.service.Register(ctx, ordersKey, a))
		owner.deliver(t, replica)

		time.Sleep(2 * testWindow)
		require.NoError(t, owner.service.Deregister(ctx, ordersKey, a))
		require.Len(t, owner.syncer.drain(), 1)

		replicaDatum, _ := replica.storage.Get(ordersKey)
		require.Equal(t, []Instance{a}, replicaDatum.Values())

		// the emptied key keeps being verified
		items := owner.storage.GetVerifyData()
		require.Len(t, items, 1)
		assert.Equal(t, ordersKey, items[0].Key.ResourceKey)

		assert.Equal(t, 1, owner.verify(t, replica))
		replicaDatum, _ = replica.storage.Get(ordersKey)
		assert.Zero(t, replicaDatum.Len())
		assert.Zero(t, owner.verify(t, replica))

		// a peer that already evicted the key agrees with the owner
		replica.storage.Sweep(0)
		assert.Zero(t, owner.verify(t, replica))
		owner.storage.Sweep(0)
		assert.Empty(t, owner.storage.GetVerifyData())
	})
	t.Run("With invalid records skipped", func(t *testing.T) {
		replica := newTestStorage()
		remote := &Datum{
			Key: ordersKey,
			Records: map[string]Instance{
				a.Identity():  a,
				"bogus#0#x":   NewInstance("", 0),
				"mismatching": b,
			},
			Counter:  1,
			RealTime: time.Now(),
		}
		content, err := codec.Marshal(remote)
		require.NoError(t, err)
		require.True(t, replica.ProcessData(distro.NewData(distro.NewKey(ordersKey, ResourceType), distro.Change, content)))
		datum, _ := replica.Get(ordersKey)
		assert.Equal(t, []Instance{a}, datum.Values())
	})
	t.Run("With a snapshot", func(t *testing.T) {
		target := newTestStorage()
		c := NewInstance("10.0.0.3", 8080)
		require.NoError(t, NewService(target, new(recordingSyncer), WithServiceLogger(log.DiscardLogger)).Register(ctx, ordersKey, c))

		source := newTestStorage()
		service := NewService(source, new(recordingSyncer), WithServiceLogger(log.DiscardLogger))
		require.NoError(t, service.Register(ctx, ordersKey, a))
		require.NoError(t, service.Register(ctx, paymentsKey, a, b))

		snapshot, err := source.GetDatumSnapshot()
		require.NoError(t, err)
		assert.Equal(t, distro.Snapshot, snapshot.Type)

		var datums [][]byte
		require.NoError(t, codec.Unmarshal(snapshot.Content, &datums))
		datums = append(datums, []byte("garbage"))
		content, err := codec.Marshal(datums)
		require.NoError(t, err)

		require.True(t, target.ProcessSnapshot(distro.NewData(snapshot.Key, distro.Snapshot, content)))

		assert.Equal(t, []string{ordersKey, paymentsKey}, target.Keys())
		orders, _ := target.Get(ordersKey)
		assert.Equal(t, []Instance{a, c}, orders.Values())
		payments, _ := target.Get(paymentsKey)
		assert.Equal(t, []Instance{a, b}, payments.Values())

		assert.False(t, target.ProcessSnapshot(distro.NewData(snapshot.Key, distro.Snapshot, []byte("garbage"))))
	})
	t.Run("With the initial load flag", func(t *testing.T) {
		storage := newTestStorage()
		assert.Equal(t, ResourceType, storage.ProcessType())
		assert.False(t, storage.IsFinishInitial())
		storage.FinishInitial()
		assert.True(t, storage.IsFinishInitial())
	})
}
