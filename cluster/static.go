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
	"slices"
	"strings"
	"sync"
)

// Static is a Membership over a fixed member list. It serves single node
// deployments and tests.
type Static struct {
	self    Member
	mu      sync.RWMutex
	members map[string]Member
	events  chan Event
	closed  bool
}

var _ Membership = (*Static)(nil)

// NewStatic creates a Static membership with self and the given peers
func NewStatic(self Member, peers ...Member) *Static {
	members := make(map[string]Member, len(peers)+1)
	members[self.Address()] = self
	for _, peer := range peers {
		members[peer.Address()] = peer
	}
	return &Static{
		self:    self,
		members: members,
		events:  make(chan Event, 64),
	}
}

// Start implements Membership
func (s *Static) Start(context.Context) error {
	return nil
}

// Stop implements Membership
func (s *Static) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Self implements Membership
func (s *Static) Self() Member {
	return s.self
}

// AllMembers implements Membership
func (s *Static) AllMembers() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMembers(s.members, "")
}

// AllMembersWithoutSelf implements Membership
func (s *Static) AllMembersWithoutSelf() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMembers(s.members, s.self.Address())
}

// Member implements Membership
func (s *Static) Member(address string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[address]
	return member, ok
}

// Events implements Membership
func (s *Static) Events() <-chan Event {
	return s.events
}

// Join adds a member and emits MemberJoined
func (s *Static) Join(member Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[member.Address()] = member
	s.emit(Event{Type: MemberJoined, Member: member})
}

// Leave removes a member and emits MemberLeft
func (s *Static) Leave(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[address]
	if !ok || address == s.self.Address() {
		return
	}
	delete(s.members, address)
	s.emit(Event{Type: MemberLeft, Member: member})
}

func (s *Static) emit(event Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

func sortedMembers(members map[string]Member, exclude string) []Member {
	out := make([]Member, 0, len(members))
	for address, member := range members {
		if address == exclude {
			continue
		}
		out = append(out, member)
	}
	slices.SortFunc(out, func(a, b Member) int {
		return strings.Compare(a.Address(), b.Address())
	})
	return out
}
