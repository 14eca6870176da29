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

// Package distro implements the leaderless anti-entropy protocol that keeps
// ephemeral data consistent across the members of a cluster.
//
// Every member pushes its local operations to its peers, and periodically
// sends the digests of the keys it owns so that peers holding a different
// view receive a fresh copy. Conflicts are resolved by the storage of every resource
// type.
package distro

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/cluster"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/workerpool"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
	"github.com/tochemey/distro/partition"
)

// Default protocol settings
const (
	DefaultVerifyInterval     = 5 * time.Second
	DefaultVerifyInitialDelay = 5 * time.Second
	DefaultSyncDelay          = time.Second
	DefaultSyncRetryDelay     = 3 * time.Second
	DefaultLoadRetryDelay     = 30 * time.Second
	DefaultLoadMaxAttempts    = 5

	retrySuffix = "retry"
	pushSuffix  = "push"
)

// Protocol is the distro protocol of one member
type Protocol struct {
	membership cluster.Membership
	holder     *ComponentHolder
	ring       *partition.Ring
	engine     *workerpool.WorkerPool
	scheduler  *scheduler
	outbox     *outbox
	verify     *VerifyScheduler
	logger     log.Logger
	metric     *metric.DistroMetric

	verifyInterval     time.Duration
	verifyInitialDelay time.Duration
	syncDelay          time.Duration
	syncRetryDelay     time.Duration
	loadRetryDelay     time.Duration
	loadMaxAttempts    int
	engineWorkers      int
	engineQueueSize    int

	started *atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProtocol creates an instance of Protocol for the local member of the
// given membership
func NewProtocol(membership cluster.Membership, opts ...Option) (*Protocol, error) {
	p := &Protocol{
		membership:         membership,
		holder:             NewComponentHolder(),
		ring:               partition.NewRing(membership.Self().Address()),
		logger:             log.DefaultLogger,
		verifyInterval:     DefaultVerifyInterval,
		verifyInitialDelay: DefaultVerifyInitialDelay,
		syncDelay:          DefaultSyncDelay,
		syncRetryDelay:     DefaultSyncRetryDelay,
		loadRetryDelay:     DefaultLoadRetryDelay,
		loadMaxAttempts:    DefaultLoadMaxAttempts,
		engineWorkers:      runtime.NumCPU(),
		engineQueueSize:    1024,
		outbox:             newOutbox(),
		started:            atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(p)
	}

	if p.metric == nil {
		distroMetric, err := metric.NewDistroMetric()
		if err != nil {
			return nil, err
		}
		p.metric = distroMetric
	}

	p.engine = workerpool.New(
		workerpool.WithWorkers(p.engineWorkers),
		workerpool.WithQueueSize(p.engineQueueSize),
		workerpool.WithLogger(p.logger))
	p.scheduler = newScheduler(p.logger, 5*time.Second)
	p.verify = &VerifyScheduler{
		holder:       p.holder,
		membership:   membership,
		engine:       p.engine,
		scheduler:    p.scheduler,
		logger:       p.logger,
		metric:       p.metric,
		interval:     p.verifyInterval,
		initialDelay: p.verifyInitialDelay,
		onFailed: func(key Key, target string) {
			p.SyncToTarget(key, Change, target, 0)
		},
	}
	return p, nil
}

// Holder returns the component holder where resource types are registered
func (p *Protocol) Holder() *ComponentHolder {
	return p.holder
}

// Ring returns the partition ring kept up to date with the membership
func (p *Protocol) Ring() *partition.Ring {
	return p.ring
}

// Metric returns the metric instruments
func (p *Protocol) Metric() *metric.DistroMetric {
	return p.metric
}

// Start loads the snapshots of the peers and starts the verification
func (p *Protocol) Start(ctx context.Context) error {
	if p.started.Load() {
		return nil
	}

	p.logger.Infof("starting distro protocol on member=(%s)...", p.membership.Self().Address())

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.updateRing()
	p.engine.Start()
	p.scheduler.Start(ctx)

	if err := p.verify.Start(); err != nil {
		cancel()
		p.scheduler.Stop(context.Background())
		p.engine.Stop()
		return err
	}

	p.wg.Add(2)
	go p.watchMembership(ctx)
	go p.load(ctx)

	p.started.Store(true)
	p.logger.Infof("distro protocol on member=(%s) started", p.membership.Self().Address())
	return nil
}

// Stop stops the verification and drops the pending tasks
func (p *Protocol) Stop(ctx context.Context) error {
	if !p.started.Swap(false) {
		return nil
	}

	p.logger.Infof("stopping distro protocol on member=(%s)...", p.membership.Self().Address())
	p.cancel()
	p.scheduler.Stop(ctx)
	p.engine.Stop()
	p.outbox.clear()
	p.wg.Wait()
	p.logger.Infof("distro protocol on member=(%s) stopped", p.membership.Self().Address())
	return nil
}

// IsInitialized reports whether every resource type finished its initial load
func (p *Protocol) IsInitialized() bool {
	return p.holder.FinishInitial()
}

// Push sends data to every other member after the sync delay. data carries
// one operation of its key. The pushes of a key to a member are sent one at
// a time in the order they were made, and none of them absorbs another.
func (p *Protocol) Push(data *Data) {
	for _, member := range p.membership.AllMembersWithoutSelf() {
		p.PushToTarget(data, member.Address(), p.syncDelay)
	}
}

// PushToTarget sends data to the given member after delay
func (p *Protocol) PushToTarget(data *Data, target string, delay time.Duration) {
	key := data.Key.WithTarget(target)
	p.outbox.enqueue(key.String(), pendingPush{data: data})
	p.schedulePush(key, delay, false)
}

// Sync sends the full state of the key to every other member after the sync
// delay
func (p *Protocol) Sync(key Key, op DataOperation) {
	for _, member := range p.membership.AllMembersWithoutSelf() {
		p.SyncToTarget(key, op, member.Address(), p.syncDelay)
	}
}

// SyncToTarget sends the full state of the key to the given member after
// delay. A sync of the same key to the same member already waiting absorbs
// this one.
func (p *Protocol) SyncToTarget(key Key, op DataOperation, target string, delay time.Duration) {
	p.scheduleSync(key.WithTarget(target), op, delay, false)
}

// OnReceive applies the Data pushed by a peer
func (p *Protocol) OnReceive(data *Data) bool {
	processor := p.holder.FindDataProcessor(data.Key.ResourceType)
	if processor == nil {
		p.logger.Warnf("no processor registered for resource type=(%s)", data.Key.ResourceType)
		return false
	}
	return processor.ProcessData(data)
}

// OnVerify checks the digest sent by source
func (p *Protocol) OnVerify(data *Data, source string) bool {
	processor := p.holder.FindDataProcessor(data.Key.ResourceType)
	if processor == nil {
		p.logger.Warnf("no processor registered for resource type=(%s)", data.Key.ResourceType)
		return false
	}
	return processor.ProcessVerifyData(data, source)
}

// OnQuery returns the local Data of the key. The Data is nil when the key
// is unknown.
func (p *Protocol) OnQuery(key Key) (*Data, error) {
	storage := p.holder.FindDataStorage(key.ResourceType)
	if storage == nil {
		return nil, errors.NewErrUnknownResourceType(key.ResourceType)
	}
	return storage.GetDistroData(key)
}

// OnSnapshot returns every local key of the resource type
func (p *Protocol) OnSnapshot(resourceType string) (*Data, error) {
	storage := p.holder.FindDataStorage(resourceType)
	if storage == nil {
		return nil, errors.NewErrUnknownResourceType(resourceType)
	}
	return storage.GetDatumSnapshot()
}

// QueryFromRemote asks the member bound to the key for its Data
func (p *Protocol) QueryFromRemote(ctx context.Context, key Key) (*Data, error) {
	agent := p.holder.FindTransportAgent(key.ResourceType)
	if agent == nil {
		return nil, fmt.Errorf("(type=%s) %w", key.ResourceType, errors.ErrNoTransportAgent)
	}
	return agent.GetData(ctx, key, key.TargetServer)
}

func (p *Protocol) scheduleSync(key Key, op DataOperation, delay time.Duration, retried bool) {
	jobKey := key.String()
	if retried {
		jobKey = EngineKey(jobKey, retrySuffix)
	}

	scheduled, err := p.scheduler.ScheduleOnce(jobKey, delay, func(ctx context.Context) {
		p.submitSync(ctx, key, op, retried)
	})

	switch {
	case err != nil:
		p.logger.Warnf("failed to schedule sync of key=(%s): %v", key, err)
	case !scheduled:
		p.logger.Debugf("sync of key=(%s) is already scheduled", key)
	}
}

func (p *Protocol) submitSync(ctx context.Context, key Key, op DataOperation, retried bool) {
	if err := p.engine.Submit(key.String(), func() { p.runSync(ctx, key, op, retried) }); err != nil {
		p.logger.Warnf("failed to submit sync of key=(%s): %v", key, err)
	}
}

func (p *Protocol) runSync(ctx context.Context, key Key, op DataOperation, retried bool) {
	target := key.TargetServer
	if _, ok := p.membership.Member(target); !ok {
		p.logger.Debugf("member=(%s) left the cluster, dropping sync of key=(%s)", target, key)
		return
	}

	storage := p.holder.FindDataStorage(key.ResourceType)
	agent := p.holder.FindTransportAgent(key.ResourceType)
	if storage == nil || agent == nil {
		p.logger.Warnf("resource type=(%s) is not fully registered, dropping sync", key.ResourceType)
		return
	}

	data, err := storage.GetDistroData(key)
	if err != nil {
		p.logger.Warnf("failed to read key=(%s) for sync: %v", key, err)
		return
	}

	if data == nil {
		p.logger.Debugf("key=(%s) no longer exists, dropping sync", key)
		return
	}

	data.Type = op
	data.Key = key

	if agent.SupportCallback() {
		agent.SyncDataWithCallback(ctx, data, target, &syncCallback{
			protocol: p,
			ctx:      ctx,
			key:      key,
			op:       op,
			retried:  retried,
		})
		return
	}

	if !agent.SyncData(ctx, data, target) {
		p.syncFailed(ctx, key, op, retried, nil)
	}
}

func (p *Protocol) syncFailed(ctx context.Context, key Key, op DataOperation, retried bool, err error) {
	p.metric.SyncFailed(ctx, key.ResourceType)
	if err != nil {
		p.logger.Warnf("sync of key=(%s) to member=(%s) failed: %v", key, key.TargetServer, err)
	} else {
		p.logger.Warnf("sync of key=(%s) to member=(%s) failed", key, key.TargetServer)
	}

	if retried || ctx.Err() != nil {
		return
	}
	p.scheduleSync(key, op, p.syncRetryDelay, true)
}

func (p *Protocol) schedulePush(key Key, delay time.Duration, retried bool) {
	jobKey := EngineKey(key.String(), pushSuffix)
	if retried {
		jobKey = EngineKey(jobKey, retrySuffix)
	}

	// a job already waiting sends the pushes queued meanwhile
	_, err := p.scheduler.ScheduleOnce(jobKey, delay, func(ctx context.Context) {
		if err := p.engine.Submit(EngineKey(key.String(), pushSuffix), func() { p.runPush(ctx, key) }); err != nil {
			p.logger.Warnf("failed to submit push of key=(%s): %v", key, err)
		}
	})
	if err != nil {
		p.logger.Warnf("failed to schedule push of key=(%s): %v", key, err)
	}
}

// runPush sends the pending pushes of key in order. The first failed push
// stops the run: it is retried once together with the pushes behind it.
func (p *Protocol) runPush(ctx context.Context, key Key) {
	queue := key.String()
	target := key.TargetServer
	if _, ok := p.membership.Member(target); !ok {
		dropped := p.outbox.drain(queue)
		p.logger.Debugf("member=(%s) left the cluster, dropping %d push(es) of key=(%s)", target, len(dropped), key)
		return
	}

	agent := p.holder.FindTransportAgent(key.ResourceType)
	if agent == nil {
		p.outbox.drain(queue)
		p.logger.Warnf("resource type=(%s) has no transport agent, dropping push", key.ResourceType)
		return
	}

	items := p.outbox.drain(queue)
	for i, item := range items {
		if agent.SyncData(ctx, item.data, target) {
			continue
		}

		p.metric.SyncFailed(ctx, key.ResourceType)
		rest := items[i+1:]
		if item.retried || ctx.Err() != nil {
			p.logger.Warnf("push of key=(%s) to member=(%s) failed, dropping it", key, target)
		} else {
			p.logger.Warnf("push of key=(%s) to member=(%s) failed, retrying in %s", key, target, p.syncRetryDelay)
			item.retried = true
			rest = append([]pendingPush{item}, rest...)
		}

		if ctx.Err() != nil {
			return
		}
		p.outbox.requeue(queue, rest)
		if len(rest) > 0 {
			p.schedulePush(key, p.syncRetryDelay, true)
		}
		return
	}
}

// syncCallback reports the outcome of an asynchronous sync call
type syncCallback struct {
	protocol *Protocol
	ctx      context.Context
	key      Key
	op       DataOperation
	retried  bool
}

var _ Callback = (*syncCallback)(nil)

func (c *syncCallback) OnSuccess() {}

func (c *syncCallback) OnFailed(err error) {
	c.protocol.syncFailed(c.ctx, c.key, c.op, c.retried, err)
}

func (p *Protocol) updateRing() {
	members := p.membership.AllMembers()
	addresses := make([]string, 0, len(members))
	for _, member := range members {
		addresses = append(addresses, member.Address())
	}
	p.ring.Update(addresses)
}

func (p *Protocol) watchMembership(ctx context.Context) {
	defer p.wg.Done()
	events := p.membership.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.logger.Infof("%s: member=(%s), rebuilding the partition ring", event.Type, event.Member.Address())
			p.updateRing()
		}
	}
}

// load fetches a snapshot of every resource type from the peers until all of
// them finished their initial load
func (p *Protocol) load(ctx context.Context) {
	defer p.wg.Done()
	retrier := retry.NewRetrier(p.loadMaxAttempts, p.loadRetryDelay, p.loadRetryDelay)
	for {
		err := retrier.RunContext(ctx, func(ctx context.Context) error {
			return p.loadOnce(ctx)
		})

		if err == nil || ctx.Err() != nil {
			return
		}

		p.logger.Warnf("failed to load the distro snapshots, retrying in %s: %v", p.loadRetryDelay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.loadRetryDelay):
		}
	}
}

func (p *Protocol) loadOnce(ctx context.Context) error {
	peers := p.membership.AllMembersWithoutSelf()
	var pending []string
	for _, resourceType := range p.holder.DataStorageTypes() {
		storage := p.holder.FindDataStorage(resourceType)
		if storage.IsFinishInitial() {
			continue
		}

		if len(peers) == 0 {
			p.logger.Infof("no peer to load resource type=(%s) from, finishing initial load", resourceType)
			storage.FinishInitial()
			continue
		}

		if p.loadFromPeers(ctx, resourceType, peers) {
			storage.FinishInitial()
			continue
		}
		pending = append(pending, resourceType)
	}

	if len(pending) > 0 {
		return fmt.Errorf("no peer served the snapshot of resource types=%v", pending)
	}
	return nil
}

func (p *Protocol) loadFromPeers(ctx context.Context, resourceType string, peers []cluster.Member) bool {
	agent := p.holder.FindTransportAgent(resourceType)
	processor := p.holder.FindDataProcessor(resourceType)
	if agent == nil || processor == nil {
		p.logger.Warnf("resource type=(%s) is not fully registered, cannot load snapshot", resourceType)
		return false
	}

	for _, peer := range peers {
		data, err := agent.GetDatumSnapshot(ctx, peer.Address())
		if err != nil {
			p.logger.Warnf("failed to get the snapshot of resource type=(%s) from member=(%s): %v", resourceType, peer.Address(), err)
			continue
		}

		if processor.ProcessSnapshot(data) {
			p.logger.Infof("loaded the snapshot of resource type=(%s) from member=(%s)", resourceType, peer.Address())
			return true
		}
	}
	return false
}
