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

// Package metric holds the OpenTelemetry instruments of the distro
// protocol and of the client redo loop.
package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tochemey/distro"

const (
	resourceTypeKey = "resource_type"
	memberKey       = "member"
	kindKey         = "kind"
	redoTypeKey     = "redo_type"
)

type config struct {
	provider metric.MeterProvider
}

func newMeter(opts ...Option) metric.Meter {
	cfg := &config{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg.provider.Meter(instrumentationName)
}

// DistroMetric defines the server side anti-entropy metrics
type DistroMetric struct {
	verifySubmitted metric.Int64Counter
	verifyFailures  metric.Int64Counter
	syncFailures    metric.Int64Counter
	mergeApplied    metric.Int64Counter
	mergeDiscarded  metric.Int64Counter
}

// NewDistroMetric creates an instance of DistroMetric
func NewDistroMetric(opts ...Option) (*DistroMetric, error) {
	meter := newMeter(opts...)
	distroMetric := new(DistroMetric)
	var err error

	if distroMetric.verifySubmitted, err = meter.Int64Counter(
		"distro_verify_submitted",
		metric.WithDescription("Total number of verify tasks submitted to the execution engine"),
	); err != nil {
		return nil, fmt.Errorf("failed to create verifySubmitted instrument, %v", err)
	}

	if distroMetric.verifyFailures, err = meter.Int64Counter(
		"distro_verify_failures",
		metric.WithDescription("Total number of failed verify calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create verifyFailures instrument, %v", err)
	}

	if distroMetric.syncFailures, err = meter.Int64Counter(
		"distro_sync_failures",
		metric.WithDescription("Total number of failed sync pushes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create syncFailures instrument, %v", err)
	}

	if distroMetric.mergeApplied, err = meter.Int64Counter(
		"distro_merge_applied",
		metric.WithDescription("Total number of operations accepted by the conflict resolver"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mergeApplied instrument, %v", err)
	}

	if distroMetric.mergeDiscarded, err = meter.Int64Counter(
		"distro_merge_discarded",
		metric.WithDescription("Total number of operations discarded by the conflict resolver"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mergeDiscarded instrument, %v", err)
	}

	return distroMetric, nil
}

// VerifySubmitted records a verify task submitted for the given member and resource type
func (x *DistroMetric) VerifySubmitted(ctx context.Context, member, resourceType string) {
	x.verifySubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(memberKey, member),
		attribute.String(resourceTypeKey, resourceType)))
}

// VerifyFailed records a failed verify call
func (x *DistroMetric) VerifyFailed(ctx context.Context, resourceType string) {
	x.verifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(resourceTypeKey, resourceType)))
}

// SyncFailed records a failed sync push
func (x *DistroMetric) SyncFailed(ctx context.Context, resourceType string) {
	x.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(resourceTypeKey, resourceType)))
}

// MergeApplied records an accepted merge
func (x *DistroMetric) MergeApplied(ctx context.Context, resourceType string) {
	x.mergeApplied.Add(ctx, 1, metric.WithAttributes(attribute.String(resourceTypeKey, resourceType)))
}

// MergeDiscarded records a discarded merge
func (x *DistroMetric) MergeDiscarded(ctx context.Context, resourceType string) {
	x.mergeDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String(resourceTypeKey, resourceType)))
}

// RedoMetric defines the client side redo metrics
type RedoMetric struct {
	replays      metric.Int64Counter
	failures     metric.Int64Counter
	skippedTicks metric.Int64Counter
}

// NewRedoMetric creates an instance of RedoMetric
func NewRedoMetric(opts ...Option) (*RedoMetric, error) {
	meter := newMeter(opts...)
	redoMetric := new(RedoMetric)
	var err error

	if redoMetric.replays, err = meter.Int64Counter(
		"redo_replays",
		metric.WithDescription("Total number of successful redo replays"),
	); err != nil {
		return nil, fmt.Errorf("failed to create replays instrument, %v", err)
	}

	if redoMetric.failures, err = meter.Int64Counter(
		"redo_failures",
		metric.WithDescription("Total number of failed redo replays"),
	); err != nil {
		return nil, fmt.Errorf("failed to create failures instrument, %v", err)
	}

	if redoMetric.skippedTicks, err = meter.Int64Counter(
		"redo_skipped_ticks",
		metric.WithDescription("Total number of redo ticks skipped while disconnected"),
	); err != nil {
		return nil, fmt.Errorf("failed to create skippedTicks instrument, %v", err)
	}

	return redoMetric, nil
}

// Replayed records a successful replay
func (x *RedoMetric) Replayed(ctx context.Context, kind, redoType string) {
	x.replays.Add(ctx, 1, metric.WithAttributes(
		attribute.String(kindKey, kind),
		attribute.String(redoTypeKey, redoType)))
}

// Failed records a failed replay
func (x *RedoMetric) Failed(ctx context.Context, kind, redoType string) {
	x.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(kindKey, kind),
		attribute.String(redoTypeKey, redoType)))
}

// SkippedTick records a tick skipped while disconnected
func (x *RedoMetric) SkippedTick(ctx context.Context) {
	x.skippedTicks.Add(ctx, 1)
}
