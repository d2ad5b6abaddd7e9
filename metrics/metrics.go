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

// Package metrics exposes the engine's prometheus instrumentation: gauges
// for how many handles are currently open, and counters for the
// write-path events that don't happen on every call (rebuilds, read
// replays, reader invalidations). A nil *Recorder disables all of it, so
// callers that don't care about metrics never have to touch this package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds the engine's prometheus collectors, registered against
// one registry at construction time.
type Recorder struct {
	OpenReadHandles  prometheus.Gauge
	OpenWriteHandles prometheus.Gauge
	Rebuilds         prometheus.Counter
	Replays          prometheus.Counter
	Invalidations    prometheus.Counter
}

// NewRecorder builds a Recorder and registers its collectors with reg. reg
// may be prometheus.DefaultRegisterer, or a dedicated registry in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		OpenReadHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cryptofs",
			Name:      "open_read_handles",
			Help:      "Number of currently open read handles.",
		}),
		OpenWriteHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cryptofs",
			Name:      "open_write_handles",
			Help:      "Number of currently open write handles.",
		}),
		Rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptofs",
			Name:      "write_rebuilds_total",
			Help:      "Number of times a write handle's content was rebuilt into a temp file to honor an out-of-order offset.",
		}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptofs",
			Name:      "read_replays_total",
			Help:      "Number of times a read handle's decryptor was restarted to serve a backward seek.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptofs",
			Name:      "reader_invalidations_total",
			Help:      "Number of read handles refreshed after a writer committed on the same inode.",
		}),
	}

	reg.MustRegister(r.OpenReadHandles, r.OpenWriteHandles, r.Rebuilds, r.Replays, r.Invalidations)
	return r
}

// The unexported helpers below tolerate a nil Recorder so instrumentation
// call sites never need their own nil check.

func (r *Recorder) readHandleOpened() {
	if r == nil {
		return
	}
	r.OpenReadHandles.Inc()
}

func (r *Recorder) readHandleClosed() {
	if r == nil {
		return
	}
	r.OpenReadHandles.Dec()
}

func (r *Recorder) writeHandleOpened() {
	if r == nil {
		return
	}
	r.OpenWriteHandles.Inc()
}

func (r *Recorder) writeHandleClosed() {
	if r == nil {
		return
	}
	r.OpenWriteHandles.Dec()
}

func (r *Recorder) rebuildPerformed() {
	if r == nil {
		return
	}
	r.Rebuilds.Inc()
}

func (r *Recorder) replayPerformed() {
	if r == nil {
		return
	}
	r.Replays.Inc()
}

func (r *Recorder) invalidationPerformed() {
	if r == nil {
		return
	}
	r.Invalidations.Inc()
}

// ReadHandleOpened, ReadHandleClosed, WriteHandleOpened, WriteHandleClosed,
// RebuildPerformed, ReplayPerformed, and InvalidationPerformed are the
// exported hooks the engine calls; each is a no-op on a nil *Recorder.
func (r *Recorder) ReadHandleOpened()       { r.readHandleOpened() }
func (r *Recorder) ReadHandleClosed()       { r.readHandleClosed() }
func (r *Recorder) WriteHandleOpened()      { r.writeHandleOpened() }
func (r *Recorder) WriteHandleClosed()      { r.writeHandleClosed() }
func (r *Recorder) RebuildPerformed()       { r.rebuildPerformed() }
func (r *Recorder) ReplayPerformed()        { r.replayPerformed() }
func (r *Recorder) InvalidationPerformed()  { r.invalidationPerformed() }
