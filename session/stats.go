/*
Copyright (c) AES67 RX SDK contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Stats exposes the counters a telemetry scrape thread cares about (spec §5
// "telemetry thread"), mirroring the gauge/counter split
// ptp/ptp4u/stats and ptp/sptp/stats use, but updated by direct Set calls from
// Sweep rather than a JSON scrape, since a Session already holds all the
// state in-process. desyncTotal is a Gauge, not a Counter, because its source
// of truth is Session's own atomic counter (spec's cumulative desync count),
// not an event stream this package observes one increment at a time.
type Stats struct {
	registry *prometheus.Registry

	offsetNS        prometheus.Gauge
	desyncTotal     prometheus.Gauge
	packetsReceived prometheus.Gauge
	packetsDropped  prometheus.Gauge
	payloadMismatch prometheus.Gauge
	rmsDB           prometheus.Gauge
	peakDB          prometheus.Gauge
}

// NewStats registers a fresh set of collectors under their own registry, so
// multiple sessions in one process (one per stream) don't collide.
func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		offsetNS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_ptp_offset_ns",
			Help: "Last measured offset from the grandmaster, in nanoseconds.",
		}),
		desyncTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_ring_desync_total",
			Help: "Cumulative count of realtime reads that could not match the target timestamp within the ring budget.",
		}),
		packetsReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_rtp_packets_received",
			Help: "RTP packets accepted into the playout ring.",
		}),
		packetsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_rtp_packets_dropped",
			Help: "RTP packets dropped for any reason: decode error, payload type or length mismatch, or falling outside the reorder window.",
		}),
		payloadMismatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_rtp_payload_mismatch",
			Help: "RTP packets dropped for a payload length mismatch.",
		}),
		rmsDB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_signal_rms_dbfs",
			Help: "Most recent RMS signal level, in dBFS.",
		}),
		peakDB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aes67rx_signal_peak_dbfs",
			Help: "Most recent peak signal level, in dBFS.",
		}),
	}
	s.registry.MustRegister(s.offsetNS, s.desyncTotal, s.packetsReceived, s.packetsDropped, s.payloadMismatch, s.rmsDB, s.peakDB)
	return s
}

// Serve starts an HTTP server exposing the registry at /metrics, blocking
// until it fails (matches ptp/sptp/stats.PrometheusExporter.Start's
// fire-and-forget convention; call it from its own goroutine).
func (s *Stats) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Fatal(http.ListenAndServe(addr, mux))
}

// update refreshes every gauge from the session's current state. Called from
// sweepLoop, never from the realtime audio callback.
func (s *Stats) update(sess *Session, levels SignalLevels) {
	s.offsetNS.Set(float64(sess.LastOffsetNS()))
	s.desyncTotal.Set(float64(sess.DesyncCount()))
	s.packetsReceived.Set(float64(sess.receiver.PacketsReceived()))
	s.packetsDropped.Set(float64(sess.receiver.PacketsDropped()))
	s.payloadMismatch.Set(float64(sess.receiver.PayloadMismatches()))
	if !math.IsNaN(levels.RMSDB) {
		s.rmsDB.Set(levels.RMSDB)
	}
	if !math.IsNaN(levels.PeakDB) {
		s.peakDB.Set(levels.PeakDB)
	}
}
