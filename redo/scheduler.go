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
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tochemey/distro/internal/ticker"
)

// Scheduler replays the pending intents of every kind with a fixed delay
// between two ticks
type Scheduler struct {
	service *Service
	ticker  *ticker.Ticker

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newScheduler(service *Service) *Scheduler {
	return &Scheduler{
		service: service,
		ticker:  ticker.New(service.delay),
	}
}

func (s *Scheduler) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.ticker.Start(func() { s.Tick(ctx) })
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.ticker.Stop()
}

// Tick runs one redo round. Nothing is sent while the client is disconnected.
// Kinds are replayed concurrently up to the configured number of workers
// and the entries of one kind sequentially.
func (s *Scheduler) Tick(ctx context.Context) {
	service := s.service
	if !service.IsConnected() {
		service.logger.Warn("redo: client is not connected, skipping redo")
		if service.metric != nil {
			service.metric.SkippedTick(ctx)
		}
		return
	}

	group := new(errgroup.Group)
	group.SetLimit(service.workers)
	for _, kind := range service.Kinds() {
		if kind.Pending() == 0 {
			continue
		}
		group.Go(func() error {
			kind.replay(ctx, service.logger, service.metric)
			return nil
		})
	}
	_ = group.Wait()
}
