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

package consistency

import (
	"slices"
	"sync"
	"sync/atomic"
)

// entry holds the published Datum of a key. Readers load the pointer
// without locking; writers hold mu for the whole resolve-and-publish step.
type entry[R Record] struct {
	mu      sync.Mutex
	datum   atomic.Pointer[Datum[R]]
	evicted bool
}

// Store is the local replica of every key. All writes go through Apply.
type Store[R Record] struct {
	resolver Resolver[R]
	entries  sync.Map // key -> *entry[R]
	size     atomic.Int64
}

// NewStore creates a Store that merges writes with resolver
func NewStore[R Record](resolver Resolver[R]) *Store[R] {
	return &Store[R]{resolver: resolver}
}

// Apply resolves op against the current Datum of key and publishes the
// result. It returns the published Datum and whether op was accepted.
func (s *Store[R]) Apply(key string, op Operation[R]) (*Datum[R], bool) {
	for {
		value, _ := s.entries.LoadOrStore(key, new(entry[R]))
		e := value.(*entry[R])
		if datum, accepted, ok := s.apply(e, key, op); ok {
			return datum, accepted
		}
	}
}

// apply runs the resolver under the entry lock. It returns false as last
// value when the entry was evicted concurrently and the caller must retry.
func (s *Store[R]) apply(e *entry[R], key string, op Operation[R]) (*Datum[R], bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil, false, false
	}

	current := e.datum.Load()
	next, accepted := s.resolver.Resolve(key, current, op)
	if !accepted {
		if current == nil {
			// drop the placeholder stored by Apply
			e.evicted = true
			s.entries.CompareAndDelete(key, e)
		}
		return current, false, true
	}

	if current == nil {
		s.size.Add(1)
	}
	e.datum.Store(next)
	return next, true, true
}

// Get returns the Datum of key
func (s *Store[R]) Get(key string) (*Datum[R], bool) {
	value, ok := s.entries.Load(key)
	if !ok {
		return nil, false
	}
	datum := value.(*entry[R]).datum.Load()
	return datum, datum != nil
}

// Keys returns the keys holding data, sorted
func (s *Store[R]) Keys() []string {
	keys := make([]string, 0, s.Len())
	s.Range(func(key string, _ *Datum[R]) bool {
		keys = append(keys, key)
		return true
	})
	slices.Sort(keys)
	return keys
}

// Len returns the number of keys holding data
func (s *Store[R]) Len() int {
	return int(s.size.Load())
}

// Range calls fn for every key holding data until fn returns false
func (s *Store[R]) Range(fn func(key string, datum *Datum[R]) bool) {
	s.entries.Range(func(k, value any) bool {
		datum := value.(*entry[R]).datum.Load()
		if datum == nil {
			return true
		}
		return fn(k.(string), datum)
	})
}

// Evict removes key when its Datum holds no record and reports whether it
// did so.
func (s *Store[R]) Evict(key string) bool {
	value, ok := s.entries.Load(key)
	if !ok {
		return false
	}
	e := value.(*entry[R])

	e.mu.Lock()
	defer e.mu.Unlock()

	datum := e.datum.Load()
	if datum.Len() > 0 {
		return false
	}
	e.evicted = true
	if s.entries.CompareAndDelete(key, e) && datum != nil {
		s.size.Add(-1)
	}
	return true
}
