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

package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/hashicorp/memberlist"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/distro/discovery"
	"github.com/tochemey/distro/log"
)

// Members is a Membership backed by memberlist gossip. Seeds come from a
// discovery provider; liveness afterwards is decided by gossip.
type Members struct {
	self     Member
	provider discovery.Provider
	logger   log.Logger

	joinTimeout       time.Duration
	joinRetryInterval time.Duration
	maxJoinAttempts   int
	shutdownTimeout   time.Duration

	mconfig *memberlist.Config
	mlist   *memberlist.Memberlist

	mu      sync.RWMutex
	members map[string]Member

	started    *atomic.Bool
	nodeEvents chan memberlist.NodeEvent
	events     chan Event
	stopSig    chan struct{}
	loopDone   chan struct{}
}

var _ Membership = (*Members)(nil)

// NewMembers creates an instance of Members
func NewMembers(self Member, provider discovery.Provider, opts ...Option) *Members {
	m := &Members{
		self:              self,
		provider:          provider,
		logger:            log.DefaultLogger,
		joinTimeout:       10 * time.Second,
		joinRetryInterval: time.Second,
		maxJoinAttempts:   10,
		shutdownTimeout:   3 * time.Second,
		members:           map[string]Member{self.Address(): self},
		started:           atomic.NewBool(false),
		nodeEvents:        make(chan memberlist.NodeEvent, 256),
		events:            make(chan Event, 256),
		stopSig:           make(chan struct{}),
		loopDone:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt.Apply(m)
	}
	return m
}

// Start joins the cluster
func (m *Members) Start(ctx context.Context) error {
	if m.started.Load() {
		return nil
	}

	m.logger.Infof("starting cluster member=(%s) gossiping on=(%s)...", m.self.Address(), m.self.GossipAddress())

	delegate, err := newDelegate(m.self)
	if err != nil {
		return fmt.Errorf("failed to create the membership delegate: %w", err)
	}

	m.mconfig = memberlist.DefaultLANConfig()
	m.mconfig.BindAddr = m.self.Host
	m.mconfig.BindPort = m.self.GossipPort
	m.mconfig.AdvertisePort = m.self.GossipPort
	m.mconfig.Name = m.self.Name
	m.mconfig.LogOutput = newLogWriter(m.logger)
	m.mconfig.Delegate = delegate
	m.mconfig.Events = &memberlist.ChannelEventDelegate{Ch: m.nodeEvents}

	if err := m.provider.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize discovery provider=(%s): %w", m.provider.ID(), err)
	}

	if err := m.provider.Register(); err != nil {
		return fmt.Errorf("failed to register with discovery provider=(%s): %w", m.provider.ID(), err)
	}

	go m.eventsLoop()

	if err := m.join(ctx); err != nil {
		close(m.stopSig)
		<-m.loopDone
		return multierr.Combine(err, m.provider.Deregister(), m.provider.Close())
	}

	m.started.Store(true)
	m.logger.Infof("cluster member=(%s) successfully started", m.self.Address())
	return nil
}

// Stop leaves the cluster
func (m *Members) Stop(context.Context) error {
	if !m.started.Swap(false) {
		return nil
	}

	m.logger.Infof("stopping cluster member=(%s)...", m.self.Address())
	err := multierr.Combine(
		m.mlist.Leave(m.shutdownTimeout),
		m.mlist.Shutdown(),
		m.provider.Deregister(),
		m.provider.Close(),
	)

	close(m.stopSig)
	<-m.loopDone
	return err
}

// Self implements Membership
func (m *Members) Self() Member {
	return m.self
}

// AllMembers implements Membership
func (m *Members) AllMembers() []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedMembers(m.members, "")
}

// AllMembersWithoutSelf implements Membership
func (m *Members) AllMembersWithoutSelf() []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedMembers(m.members, m.self.Address())
}

// Member implements Membership
func (m *Members) Member(address string) (Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[address]
	return member, ok
}

// Events implements Membership
func (m *Members) Events() <-chan Event {
	return m.events
}

func (m *Members) join(ctx context.Context) error {
	var err error
	m.mlist, err = memberlist.Create(m.mconfig)
	if err != nil {
		return fmt.Errorf("failed to create the cluster members list: %w", err)
	}

	joinCtx, cancel := context.WithTimeout(ctx, m.joinTimeout)
	defer cancel()

	var peers []string
	retrier := retry.NewRetrier(m.maxJoinAttempts, m.joinRetryInterval, m.joinRetryInterval)
	if err := retrier.RunContext(joinCtx, func(context.Context) error {
		peers, err = m.provider.DiscoverPeers()
		return err
	}); err != nil {
		_ = m.mlist.Shutdown()
		return fmt.Errorf("failed to discover cluster peers: %w", err)
	}

	if len(peers) == 0 {
		m.logger.Infof("no peer found, member=(%s) starts a new cluster", m.self.Address())
		return nil
	}

	if err := retrier.RunContext(joinCtx, func(context.Context) error {
		_, err := m.mlist.Join(peers)
		return err
	}); err != nil {
		_ = m.mlist.Shutdown()
		return fmt.Errorf("failed to join the cluster: %w", err)
	}
	return nil
}

func (m *Members) eventsLoop() {
	defer close(m.loopDone)
	defer close(m.events)
	for {
		select {
		case <-m.stopSig:
			return
		case event := <-m.nodeEvents:
			m.handle(event)
		}
	}
}

func (m *Members) handle(event memberlist.NodeEvent) {
	member, err := memberFromMeta(event.Node.Meta)
	if err != nil {
		m.logger.Errorf("failed to decode node=(%s) meta: %v", event.Node.Address(), err)
		return
	}

	if member.Address() == m.self.Address() {
		return
	}

	var out Event
	m.mu.Lock()
	switch event.Event {
	case memberlist.NodeJoin:
		m.members[member.Address()] = member
		out = Event{Type: MemberJoined, Member: member}
	case memberlist.NodeLeave:
		delete(m.members, member.Address())
		out = Event{Type: MemberLeft, Member: member}
	default:
		m.members[member.Address()] = member
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Infof("%s: member=(%s)", out.Type, member.Address())
	select {
	case m.events <- out:
	default:
		m.logger.Warnf("membership events buffer is full, dropping %s of member=(%s)", out.Type, member.Address())
	}
}
