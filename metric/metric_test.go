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

package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				out[m.Name] += point.Value
			}
		}
	}
	return out
}

func TestDistroMetric(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	distroMetric, err := NewDistroMetric(WithMeterProvider(provider))
	require.NoError(t, err)

	distroMetric.VerifySubmitted(ctx, "127.0.0.1:7848", "naming-instance")
	distroMetric.VerifySubmitted(ctx, "127.0.0.2:7848", "naming-instance")
	distroMetric.VerifyFailed(ctx, "naming-instance")
	distroMetric.SyncFailed(ctx, "naming-instance")
	distroMetric.MergeApplied(ctx, "naming-instance")
	distroMetric.MergeApplied(ctx, "naming-instance")
	distroMetric.MergeDiscarded(ctx, "naming-instance")

	values := collect(t, reader)
	assert.EqualValues(t, 2, values["distro_verify_submitted"])
	assert.EqualValues(t, 1, values["distro_verify_failures"])
	assert.EqualValues(t, 1, values["distro_sync_failures"])
	assert.EqualValues(t, 2, values["distro_merge_applied"])
	assert.EqualValues(t, 1, values["distro_merge_discarded"])
}

func TestRedoMetric(t *testing.T) {
	t.Run("With a meter provider", func(t *testing.T) {
		ctx := context.Background()
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		redoMetric, err := NewRedoMetric(WithMeterProvider(provider))
		require.NoError(t, err)

		redoMetric.Replayed(ctx, "naming-instance", "Register")
		redoMetric.Failed(ctx, "naming-instance", "Unregister")
		redoMetric.SkippedTick(ctx)
		redoMetric.SkippedTick(ctx)

		values := collect(t, reader)
		assert.EqualValues(t, 1, values["redo_replays"])
		assert.EqualValues(t, 1, values["redo_failures"])
		assert.EqualValues(t, 2, values["redo_skipped_ticks"])
	})
	t.Run("With the global meter provider", func(t *testing.T) {
		redoMetric, err := NewRedoMetric()
		require.NoError(t, err)
		redoMetric.SkippedTick(context.Background())
	})
}
