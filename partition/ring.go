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

// Package partition decides which cluster member is responsible for a key.
//
// Ownership follows a consistent hash ring over the live members. When a
// member joins or leaves only the keys hashed onto its virtual nodes change
// owner; those keys are picked up by the next verify round of their new
// owner without any eager handoff.
package partition

import (
	"encoding/binary"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/tochemey/distro/hash"
)

// DefaultReplicas is the number of virtual nodes per member
const DefaultReplicas = 128

type point struct {
	hash  uint64
	owner string
}

// snapshot is an immutable view of the ring
type snapshot struct {
	points  []point
	members []string
}

// Ring is a consistent hash ring of member addresses. Lookups are
// lock-free; Update publishes a new ring atomically.
type Ring struct {
	self     string
	replicas int
	hasher   hash.Hasher
	current  atomic.Pointer[snapshot]
}

// Option configures a Ring
type Option func(*Ring)

// WithReplicas sets the number of virtual nodes per member
func WithReplicas(replicas int) Option {
	return func(r *Ring) {
		if replicas > 0 {
			r.replicas = replicas
		}
	}
}

// WithHasher sets the hasher used to place keys and virtual nodes
func WithHasher(hasher hash.Hasher) Option {
	return func(r *Ring) {
		if hasher != nil {
			r.hasher = hasher
		}
	}
}

// NewRing creates a Ring for the member self. The ring initially contains
// only self.
func NewRing(self string, opts ...Option) *Ring {
	r := &Ring{
		self:     self,
		replicas: DefaultReplicas,
		hasher:   hash.DefaultHasher(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Update([]string{self})
	return r
}

// Self returns the address of the local member
func (r *Ring) Self() string {
	return r.self
}

// Update rebuilds the ring from the given member addresses
func (r *Ring) Update(members []string) {
	unique := slices.Clone(members)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	if len(unique) > 0 && unique[0] == "" {
		unique = unique[1:]
	}

	points := make([]point, 0, len(unique)*r.replicas)
	for _, member := range unique {
		for i := range r.replicas {
			points = append(points, point{hash: r.hasher.HashCode(pointKey(member, i)), owner: member})
		}
	}
	slices.SortFunc(points, func(a, b point) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			// collisions resolve deterministically on every member
			if a.owner < b.owner {
				return -1
			}
			if a.owner > b.owner {
				return 1
			}
			return 0
		}
	})

	r.current.Store(&snapshot{points: points, members: unique})
}

// Members returns the member addresses on the ring, sorted
func (r *Ring) Members() []string {
	return slices.Clone(r.current.Load().members)
}

// Owner returns the member responsible for key. An empty ring returns the
// local member.
func (r *Ring) Owner(key string) string {
	snap := r.current.Load()
	if len(snap.points) == 0 {
		return r.self
	}
	h := r.hasher.HashCode([]byte(key))
	idx := sort.Search(len(snap.points), func(i int) bool { return snap.points[i].hash >= h })
	if idx == len(snap.points) {
		idx = 0
	}
	return snap.points[idx].owner
}

// Responsible reports whether the local member owns key
func (r *Ring) Responsible(key string) bool {
	return r.Owner(key) == r.self
}

func pointKey(member string, i int) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(i))
	return append([]byte(member), buf[:]...)
}
