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
	"fmt"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/distro/consistency"
	"github.com/tochemey/distro/distro"
	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/internal/ticker"
	"github.com/tochemey/distro/internal/workerpool"
	"github.com/tochemey/distro/log"
)

// DefaultSweepInterval is the default period of the empty service sweeper
const DefaultSweepInterval = 30 * time.Second

// Syncer pushes the operations accepted locally to the peers.
// distro.Protocol is a Syncer.
type Syncer interface {
	Push(data *distro.Data)
}

// Notifier delivers the instances of a changed service to one of its
// subscribers
type Notifier interface {
	Notify(key, subscriber string, instances []Instance) error
}

// Service is the ephemeral registry of the local member. Local writes are
// stamped with the local clock, merged into the Storage and pushed to the
// peers.
type Service struct {
	storage       *Storage
	syncer        Syncer
	logger        log.Logger
	sweepInterval time.Duration
	sweepHorizon  time.Duration
	sweeper       *ticker.Ticker

	mu            sync.RWMutex
	subscribers   map[string]goset.Set[string]
	notifier      Notifier
	notifications *workerpool.WorkerPool
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger
func WithServiceLogger(logger log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSweep sets the sweeper period and the idle time after which an empty
// service is evicted
func WithSweep(interval, horizon time.Duration) ServiceOption {
	return func(s *Service) {
		s.sweepInterval = interval
		s.sweepHorizon = horizon
	}
}

// NewService creates an instance of Service
func NewService(storage *Storage, syncer Syncer, opts ...ServiceOption) *Service {
	s := &Service{
		storage:       storage,
		syncer:        syncer,
		logger:        log.DefaultLogger,
		sweepInterval: DefaultSweepInterval,
		sweepHorizon:  2 * consistency.DefaultWindow,
		subscribers:   make(map[string]goset.Set[string]),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sweeper = ticker.New(s.sweepInterval)
	storage.Listen(s.changed)
	return s
}

// Start starts the sweeper of empty services and the delivery of the
// notifications
func (s *Service) Start() {
	s.mu.Lock()
	if s.notifications == nil {
		s.notifications = workerpool.New(workerpool.WithLogger(s.logger))
		s.notifications.Start()
	}
	s.mu.Unlock()

	s.sweeper.Start(func() {
		if evicted := s.storage.Sweep(s.sweepHorizon); evicted > 0 {
			s.logger.Debugf("swept %d empty service(s)", evicted)
		}
	})
}

// Stop stops the sweeper and drops the pending notifications
func (s *Service) Stop() {
	s.sweeper.Stop()

	s.mu.Lock()
	notifications := s.notifications
	s.notifications = nil
	s.mu.Unlock()
	if notifications != nil {
		notifications.Stop()
	}
}

// SetNotifier sets the Notifier of the subscribers. A nil notifier turns
// the notifications off.
func (s *Service) SetNotifier(notifier Notifier) {
	s.mu.Lock()
	s.notifier = notifier
	s.mu.Unlock()
}

// Register adds instances to the service key
func (s *Service) Register(_ context.Context, key string, instances ...Instance) error {
	if err := validate(key, instances); err != nil {
		return err
	}

	op := consistency.NewAdd(time.Now(), instances...)
	if _, accepted := s.storage.Apply(key, op); !accepted {
		return fmt.Errorf("(key=%s) %w", key, errors.ErrOperationDiscarded)
	}

	s.push(key, op)
	return nil
}

// Deregister removes instances from the service key. Instances that are not
// registered are ignored. A removal concurrent with a registration of the
// same instances is discarded and reported as errors.ErrOperationDiscarded;
// the caller retries later.
func (s *Service) Deregister(_ context.Context, key string, instances ...Instance) error {
	if err := validate(key, instances); err != nil {
		return err
	}

	current, _ := s.storage.Get(key)
	present := make([]Instance, 0, len(instances))
	for _, instance := range instances {
		if current.Contains(instance.Identity()) {
			present = append(present, instance)
		}
	}

	if len(present) == 0 {
		return nil
	}

	op := consistency.NewRemove(time.Now(), present...)
	if _, accepted := s.storage.Apply(key, op); !accepted {
		return fmt.Errorf("(key=%s) %w", key, errors.ErrOperationDiscarded)
	}

	s.push(key, op)
	return nil
}

// Instances returns the instances of the service key ordered by identity
func (s *Service) Instances(key string) []Instance {
	datum, ok := s.storage.Get(key)
	if !ok {
		return nil
	}
	return datum.Values()
}

// Services returns the service keys holding data
func (s *Service) Services() []string {
	return s.storage.Keys()
}

// Subscribe records subscriber as interested in the service key
func (s *Service) Subscribe(key, subscriber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subscribers[key]
	if !ok {
		set = goset.NewThreadUnsafeSet[string]()
		s.subscribers[key] = set
	}
	set.Add(subscriber)
}

// Unsubscribe removes subscriber from the service key
func (s *Service) Unsubscribe(key, subscriber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subscribers[key]
	if !ok {
		return
	}
	set.Remove(subscriber)
	if set.IsEmpty() {
		delete(s.subscribers, key)
	}
}

// Subscribers returns the subscribers of the service key
func (s *Service) Subscribers(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.subscribers[key]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

func (s *Service) push(key string, op Operation) {
	data, err := NewOperationData(key, op)
	if err != nil {
		// the next verify round repairs the peers
		s.logger.Warnf("failed to encode the %s on key=(%s): %v", op.Kind, key, err)
		return
	}
	s.syncer.Push(data)
}

// changed schedules the notification of the subscribers of key. The changes
// of a key waiting for delivery are notified once.
func (s *Service) changed(key string) {
	s.mu.RLock()
	notifications := s.notifications
	interested := s.notifier != nil && s.subscribers[key] != nil
	s.mu.RUnlock()
	if notifications == nil || !interested {
		return
	}

	if err := notifications.Submit(key, func() { s.notify(key) }); err != nil {
		s.logger.Debugf("notification of key=(%s) not scheduled: %v", key, err)
	}
}

func (s *Service) notify(key string) {
	s.mu.RLock()
	notifier := s.notifier
	s.mu.RUnlock()
	if notifier == nil {
		return
	}

	instances := s.Instances(key)
	for _, subscriber := range s.Subscribers(key) {
		if err := notifier.Notify(key, subscriber, instances); err != nil {
			s.logger.Warnf("failed to notify subscriber=(%s) of key=(%s): %v", subscriber, key, err)
		}
	}
}

func validate(key string, instances []Instance) error {
	if _, _, _, err := ParseServiceKey(key); err != nil {
		return errors.NewErrInvalidRecord(err)
	}
	if len(instances) == 0 {
		return errors.NewErrInvalidRecord(fmt.Errorf("no instance given for key=(%s)", key))
	}
	for _, instance := range instances {
		if err := instance.Validate(); err != nil {
			return err
		}
	}
	return nil
}
