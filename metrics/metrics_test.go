// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderTracksHandleCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ReadHandleOpened()
	r.ReadHandleOpened()
	r.ReadHandleClosed()
	r.WriteHandleOpened()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.OpenReadHandles))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.OpenWriteHandles))
}

func TestRecorderTracksEventCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RebuildPerformed()
	r.RebuildPerformed()
	r.ReplayPerformed()
	r.InvalidationPerformed()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.Rebuilds))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Replays))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Invalidations))
}

func TestNilRecorderIsANoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ReadHandleOpened()
		r.ReadHandleClosed()
		r.WriteHandleOpened()
		r.WriteHandleClosed()
		r.RebuildPerformed()
		r.ReplayPerformed()
		r.InvalidationPerformed()
	})
}
