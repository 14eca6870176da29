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
	"time"

	"github.com/tochemey/distro/cluster"
	"github.com/tochemey/distro/internal/workerpool"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

const verifyJobKey = "distro-verify"

// VerifyScheduler periodically sends the digests of every resource type
// to every other member. Tasks are keyed by member and resource type so
// two verify rounds towards the same peer and type never overlap.
type VerifyScheduler struct {
	holder       *ComponentHolder
	membership   cluster.Membership
	engine       *workerpool.WorkerPool
	scheduler    *scheduler
	logger       log.Logger
	metric       *metric.DistroMetric
	interval     time.Duration
	initialDelay time.Duration
	onFailed     func(key Key, target string)
}

// Start schedules the periodic verification
func (v *VerifyScheduler) Start() error {
	v.logger.Infof("starting distro verify every %s after %s", v.interval, v.initialDelay)
	return v.scheduler.ScheduleEvery(verifyJobKey, v.initialDelay, v.interval, v.Tick)
}

// Tick runs one verification round
func (v *VerifyScheduler) Tick(ctx context.Context) {
	for _, resourceType := range v.holder.DataStorageTypes() {
		storage := v.holder.FindDataStorage(resourceType)
		if !storage.IsFinishInitial() {
			v.logger.Debugf("resource type=(%s) has not finished its initial load, skipping verify", resourceType)
			continue
		}

		items := storage.GetVerifyData()
		if len(items) == 0 {
			continue
		}

		agent := v.holder.FindTransportAgent(resourceType)
		if agent == nil {
			v.logger.Warnf("no transport agent registered for resource type=(%s)", resourceType)
			continue
		}

		for _, member := range v.membership.AllMembersWithoutSelf() {
			target := member.Address()
			task := NewVerifyTask(items, target, resourceType, agent, v.logger, v.metric, v.onFailed)
			if err := v.engine.Submit(EngineKey(target, resourceType), func() { task.Run(ctx) }); err != nil {
				v.logger.Warnf("failed to submit verify task of resource type=(%s) to member=(%s): %v", resourceType, target, err)
				continue
			}

			if v.metric != nil {
				v.metric.VerifySubmitted(ctx, target, resourceType)
			}
		}
	}
}
