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

	"github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/metric"
)

// VerifyTask sends a batch of verify items of one resource type to one
// peer. A failing item never prevents the next one from being sent.
type VerifyTask struct {
	items        []*Data
	target       string
	resourceType string
	agent        TransportAgent
	logger       log.Logger
	metric       *metric.DistroMetric
	onFailed     func(key Key, target string)
}

// NewVerifyTask creates a VerifyTask. onFailed is called with the key of
// every item the peer failed to verify and may be nil.
func NewVerifyTask(items []*Data, target, resourceType string, agent TransportAgent, logger log.Logger, distroMetric *metric.DistroMetric, onFailed func(key Key, target string)) *VerifyTask {
	return &VerifyTask{
		items:        items,
		target:       target,
		resourceType: resourceType,
		agent:        agent,
		logger:       logger,
		metric:       distroMetric,
		onFailed:     onFailed,
	}
}

// Run sends every item
func (t *VerifyTask) Run(ctx context.Context) {
	callback := t.agent.SupportCallback()
	for _, item := range t.items {
		if callback {
			t.verifyWithCallback(ctx, item)
			continue
		}
		t.verify(ctx, item)
	}
}

func (t *VerifyTask) verify(ctx context.Context, item *Data) {
	defer t.recover(ctx, item)
	if !t.agent.SyncVerifyData(ctx, item, t.target) {
		t.failed(ctx, item.Key, nil)
	}
}

func (t *VerifyTask) verifyWithCallback(ctx context.Context, item *Data) {
	defer t.recover(ctx, item)
	t.agent.SyncVerifyDataWithCallback(ctx, item, t.target, &verifyCallback{task: t, ctx: ctx, key: item.Key})
}

func (t *VerifyTask) recover(ctx context.Context, item *Data) {
	if r := recover(); r != nil {
		t.failed(ctx, item.Key, errors.NewPanicError(r))
	}
}

func (t *VerifyTask) failed(ctx context.Context, key Key, err error) {
	if err != nil {
		t.logger.Debugf("verify of key=(%s) with member=(%s) failed: %v", key, t.target, err)
	} else {
		t.logger.Debugf("verify of key=(%s) with member=(%s) failed", key, t.target)
	}

	if t.metric != nil {
		t.metric.VerifyFailed(ctx, t.resourceType)
	}

	if t.onFailed != nil {
		t.onFailed(key, t.target)
	}
}

// verifyCallback reports the outcome of an asynchronous verify call
type verifyCallback struct {
	task *VerifyTask
	ctx  context.Context
	key  Key
}

var _ Callback = (*verifyCallback)(nil)

func (c *verifyCallback) OnSuccess() {}

func (c *verifyCallback) OnFailed(err error) {
	c.task.failed(c.ctx, c.key, err)
}
