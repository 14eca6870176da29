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

package redo

import (
	"sort"
	"sync"
)

// Store holds the registration intents of one kind. A single mutex guards
// the whole map.
type Store[T any] struct {
	kind  string
	mu    sync.Mutex
	items map[string]*Data[T]
}

// NewStore creates an empty Store for the given kind
func NewStore[T any](kind string) *Store[T] {
	return &Store[T]{
		kind:  kind,
		items: make(map[string]*Data[T]),
	}
}

// Kind returns the kind of the store
func (s *Store[T]) Kind() string {
	return s.kind
}

// Cache records the intent to register value under key.
// A previous intent for the key is replaced.
func (s *Store[T]) Cache(key string, value T) {
	s.mu.Lock()
	s.items[key] = &Data[T]{
		Key:                key,
		Value:              value,
		expectedRegistered: true,
	}
	s.mu.Unlock()
}

// MarkRegistered records a successful registration. A missing key is ignored.
func (s *Store[T]) MarkRegistered(key string) {
	s.mu.Lock()
	if data, ok := s.items[key]; ok {
		data.registered = true
	}
	s.mu.Unlock()
}

// MarkDeregistering records the intent to leave. The entry is kept until the
// unregister is acknowledged.
func (s *Store[T]) MarkDeregistering(key string) {
	s.mu.Lock()
	if data, ok := s.items[key]; ok {
		data.expectedRegistered = false
		data.unregistering = true
	}
	s.mu.Unlock()
}

// MarkDeregistered records an acknowledged unregister
func (s *Store[T]) MarkDeregistered(key string) {
	s.mu.Lock()
	if data, ok := s.items[key]; ok {
		data.unregistering = false
		data.registered = false
	}
	s.mu.Unlock()
}

// CompleteDeregister records an acknowledged unregister and purges the
// entry in one step. An entry cached again while the unregister was in
// flight is left untouched. It returns true when the entry is gone.
func (s *Store[T]) CompleteDeregister(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return true
	}
	if data.expectedRegistered || !data.unregistering {
		return false
	}
	delete(s.items, key)
	return true
}

// Remove purges the entry of key unless its registration is still desired or
// its unregister is in flight. It returns true when the entry is gone.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return true
	}
	if data.expectedRegistered || data.unregistering {
		return false
	}
	delete(s.items, key)
	return true
}

// IsRegistered returns true when key is cached and registered
func (s *Store[T]) IsRegistered(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	return ok && data.registered
}

// Get returns a copy of the entry of key
func (s *Store[T]) Get(key string) (Data[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.items[key]
	if !ok {
		return Data[T]{}, false
	}
	return *data, true
}

// FindNeedingRedo returns a copy of the entries that are not registered or
// have an unregister in flight, ordered by key
func (s *Store[T]) FindNeedingRedo() []Data[T] {
	s.mu.Lock()
	result := make([]Data[T], 0, len(s.items))
	for _, data := range s.items {
		if !data.registered || data.unregistering {
			result = append(result, *data)
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Len returns the number of cached entries
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear drops every entry
func (s *Store[T]) Clear() {
	s.mu.Lock()
	clear(s.items)
	s.mu.Unlock()
}

// invalidate marks every entry as not registered
func (s *Store[T]) invalidate() {
	s.mu.Lock()
	for _, data := range s.items {
		data.registered = false
	}
	s.mu.Unlock()
}
