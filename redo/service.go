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
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

const (
	// DefaultDelay is the default delay between two redo ticks
	DefaultDelay = 3 * time.Second
	// DefaultWorkers is the default number of kinds replayed concurrently
	DefaultWorkers = 1
)

// Service tracks the connection state of a client and the kinds of intents
// it must replay once connected
type Service struct {
	logger    log.Logger
	metric    *metric.RedoMetric
	delay     time.Duration
	workers   int
	connected *atomic.Bool
	scheduler *Scheduler

	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewService creates an instance of Service. The client is considered
// disconnected until OnConnected is called.
func NewService(opts ...Option) *Service {
	service := &Service{
		logger:    log.DefaultLogger,
		delay:     DefaultDelay,
		workers:   DefaultWorkers,
		connected: atomic.NewBool(false),
		kinds:     make(map[string]Kind),
	}

	for _, opt := range opts {
		opt.Apply(service)
	}

	service.scheduler = newScheduler(service)
	return service
}

// AddKind registers a kind of intents
func (s *Service) AddKind(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kinds[kind.Name()]; ok {
		return fmt.Errorf("redo kind=(%s) is already registered", kind.Name())
	}
	s.kinds[kind.Name()] = kind
	return nil
}

// Kinds returns the registered kinds ordered by name
func (s *Service) Kinds() []Kind {
	s.mu.RLock()
	kinds := make([]Kind, 0, len(s.kinds))
	for _, kind := range s.kinds {
		kinds = append(kinds, kind)
	}
	s.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Name() < kinds[j].Name()
	})
	return kinds
}

// OnConnected marks the client as connected
func (s *Service) OnConnected() {
	s.connected.Store(true)
	s.logger.Info("redo: connection established")
}

// OnDisconnect marks the client as disconnected and every cached intent as
// not registered, so all of them are asserted again on reconnect
func (s *Service) OnDisconnect() {
	s.connected.Store(false)
	s.logger.Warn("redo: connection lost, marking every intent for redo")
	for _, kind := range s.Kinds() {
		kind.invalidate()
	}
}

// IsConnected returns true when the client is connected
func (s *Service) IsConnected() bool {
	return s.connected.Load()
}

// Scheduler returns the redo scheduler
func (s *Service) Scheduler() *Scheduler {
	return s.scheduler
}

// Start starts the redo scheduler
func (s *Service) Start() {
	s.scheduler.start()
}

// Shutdown stops the redo scheduler and drops every cached intent
func (s *Service) Shutdown() {
	s.scheduler.stop()
	for _, kind := range s.Kinds() {
		kind.clear()
	}
	s.logger.Info("redo service stopped")
}
