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

package distro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/log"
)

// scheduler runs the delayed and periodic jobs of the protocol
type scheduler struct {
	// helps lock concurrent access
	mu sync.Mutex
	// underlying Scheduler
	quartzScheduler quartz.Scheduler
	// states whether the quartzScheduler has started or not
	started *atomic.Bool
	logger  log.Logger
	// define the shutdown timeout
	stopTimeout time.Duration
}

// newScheduler creates an instance of scheduler
func newScheduler(logger log.Logger, stopTimeout time.Duration) *scheduler {
	// create an instance of quartz scheduler with logger off
	quartzScheduler, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	return &scheduler{
		started:         atomic.NewBool(false),
		quartzScheduler: quartzScheduler,
		logger:          logger,
		stopTimeout:     stopTimeout,
	}
}

// Start starts the scheduler
func (x *scheduler) Start(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.quartzScheduler.Start(ctx)
	x.started.Store(x.quartzScheduler.IsStarted())
}

// Stop stops the scheduler and drops the scheduled jobs
func (x *scheduler) Stop(ctx context.Context) {
	if !x.started.Load() {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	_ = x.quartzScheduler.Clear()
	x.quartzScheduler.Stop()
	x.started.Store(x.quartzScheduler.IsStarted())

	ctx, cancel := context.WithTimeout(ctx, x.stopTimeout)
	defer cancel()
	x.quartzScheduler.Wait(ctx)
}

// ScheduleOnce runs fn once after delay. It returns false without
// scheduling anything when a job with the same key is already pending.
func (x *scheduler) ScheduleOnce(key string, delay time.Duration, fn func(ctx context.Context)) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return false, errors.ErrSchedulerNotStarted
	}

	jobKey := quartz.NewJobKey(key)
	if _, err := x.quartzScheduler.GetScheduledJob(jobKey); err == nil {
		return false, nil
	}

	detail := quartz.NewJobDetail(newFunctionJob(fn), jobKey)
	if err := x.quartzScheduler.ScheduleJob(detail, quartz.NewRunOnceTrigger(delay)); err != nil {
		return false, fmt.Errorf("failed to schedule job=(%s): %w", key, err)
	}
	return true, nil
}

// ScheduleEvery runs fn after initialDelay and then every interval
func (x *scheduler) ScheduleEvery(key string, initialDelay, interval time.Duration, fn func(ctx context.Context)) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return errors.ErrSchedulerNotStarted
	}

	detail := quartz.NewJobDetail(newFunctionJob(fn), quartz.NewJobKey(key))
	if err := x.quartzScheduler.ScheduleJob(detail, newDelayedTrigger(initialDelay, interval)); err != nil {
		return fmt.Errorf("failed to schedule job=(%s): %w", key, err)
	}
	return nil
}

func newFunctionJob(fn func(ctx context.Context)) quartz.Job {
	return job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		fn(ctx)
		return true, nil
	})
}

// delayedTrigger fires first after the initial delay, then at a fixed interval
type delayedTrigger struct {
	initialDelay time.Duration
	interval     time.Duration
	fired        *atomic.Bool
}

var _ quartz.Trigger = (*delayedTrigger)(nil)

func newDelayedTrigger(initialDelay, interval time.Duration) *delayedTrigger {
	return &delayedTrigger{
		initialDelay: initialDelay,
		interval:     interval,
		fired:        atomic.NewBool(false),
	}
}

// NextFireTime returns the next time at which the trigger fires
func (t *delayedTrigger) NextFireTime(prev int64) (int64, error) {
	if t.fired.CompareAndSwap(false, true) {
		return prev + t.initialDelay.Nanoseconds(), nil
	}
	return prev + t.interval.Nanoseconds(), nil
}

// Description returns the description of the trigger
func (t *delayedTrigger) Description() string {
	return fmt.Sprintf("DelayedTrigger::%s::%s", t.initialDelay, t.interval)
}
