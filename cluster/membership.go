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

// Package cluster tracks the live members of a distro cluster.
package cluster

import "context"

// EventType defines the cluster event type
type EventType int

const (
	// MemberJoined is emitted when a member joins the cluster
	MemberJoined EventType = iota
	// MemberLeft is emitted when a member leaves the cluster or is declared dead
	MemberLeft
)

// String returns the event type name
func (x EventType) String() string {
	switch x {
	case MemberJoined:
		return "MemberJoined"
	case MemberLeft:
		return "MemberLeft"
	default:
		return "Unknown"
	}
}

// Event is a membership change
type Event struct {
	Type   EventType
	Member Member
}

// Membership exposes the live members of the cluster
type Membership interface {
	// Start joins the cluster
	Start(ctx context.Context) error
	// Stop leaves the cluster
	Stop(ctx context.Context) error
	// Self returns the local member
	Self() Member
	// AllMembers returns every live member, self included, sorted by address
	AllMembers() []Member
	// AllMembersWithoutSelf returns every live member except self, sorted by address
	AllMembersWithoutSelf() []Member
	// Member returns the live member with the given address
	Member(address string) (Member, bool)
	// Events streams membership changes. The channel is closed on Stop.
	Events() <-chan Event
}
