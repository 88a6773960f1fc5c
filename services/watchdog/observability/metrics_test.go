// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetricsAndRecording(t *testing.T) {
	metrics := InitMetrics()
	require.NotNil(t, metrics)
	assert.Same(t, metrics, DefaultMetrics)

	metrics.RecordUpdate(SourceAPI, true)
	metrics.RecordUpdate(SourceAPI, false)
	metrics.RecordUpdate(SourceWatcher, true)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.ConfigUpdatesTotal.WithLabelValues("api", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.ConfigUpdatesTotal.WithLabelValues("api", "error")))

	metrics.SetConfiguredComponents(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ConfiguredComponents))

	metrics.RecordThresholdQuery("VENDOR")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.ThresholdQueriesTotal.WithLabelValues("VENDOR")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *WatchdogMetrics
	assert.NotPanics(t, func() {
		metrics.RecordUpdate(SourceAPI, true)
		metrics.SetConfiguredComponents(1)
		metrics.RecordThresholdQuery("SYSTEM")
	})
}
