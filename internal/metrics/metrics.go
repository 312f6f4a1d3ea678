package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. Every method is safe on a nil receiver,
// so components can run without metrics in tests.
type Metrics struct {
	// Batch cycles
	CyclesStarted   atomic.Uint64
	CyclesSucceeded atomic.Uint64
	CyclesFailed    atomic.Uint64
	CyclesSkipped   atomic.Uint64
	FramesSampled   atomic.Uint64
	LastCycleMs     atomic.Uint64
	LastAvgVehicles atomic.Uint64 // avg * 100

	// Live view
	LiveSessions   atomic.Int64
	LiveFramesSent atomic.Uint64
	LiveThrottled  atomic.Uint64
	EncodeErrors   atomic.Uint64
	Reconnects     atomic.Uint64

	// Detector
	Detections      atomic.Uint64
	DetectLatencyMs atomic.Uint64

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name, help string
		value      func() float64
	}{
		{"traffic_cycles_started_total", "Batch cycles started", func() float64 { return float64(m.CyclesStarted.Load()) }},
		{"traffic_cycles_succeeded_total", "Batch cycles that produced a result", func() float64 { return float64(m.CyclesSucceeded.Load()) }},
		{"traffic_cycles_failed_total", "Batch cycles that raised an alert", func() float64 { return float64(m.CyclesFailed.Load()) }},
		{"traffic_cycles_skipped_total", "Batch cycles skipped because no frames were captured", func() float64 { return float64(m.CyclesSkipped.Load()) }},
		{"traffic_frames_sampled_total", "Frames written by the batch sampler", func() float64 { return float64(m.FramesSampled.Load()) }},
		{"traffic_last_cycle_duration_ms", "Duration of the last batch cycle in milliseconds", func() float64 { return float64(m.LastCycleMs.Load()) }},
		{"traffic_last_avg_vehicles", "Average vehicle count of the last successful cycle", func() float64 { return float64(m.LastAvgVehicles.Load()) / 100 }},
		{"traffic_live_sessions", "Active live view sessions", func() float64 { return float64(m.LiveSessions.Load()) }},
		{"traffic_live_frames_sent_total", "Frames emitted to live view clients", func() float64 { return float64(m.LiveFramesSent.Load()) }},
		{"traffic_live_frames_throttled_total", "Frames skipped by the live rate limit", func() float64 { return float64(m.LiveThrottled.Load()) }},
		{"traffic_encode_errors_total", "Frames dropped because JPEG encoding failed", func() float64 { return float64(m.EncodeErrors.Load()) }},
		{"traffic_stream_reconnects_total", "Decode session reconnects", func() float64 { return float64(m.Reconnects.Load()) }},
		{"traffic_detections_total", "Vehicles detected across all frames", func() float64 { return float64(m.Detections.Load()) }},
		{"traffic_detect_latency_ms", "Latency of the last detector call in milliseconds", func() float64 { return float64(m.DetectLatencyMs.Load()) }},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.value,
		))
	}
}

func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.CyclesStarted.Add(1)
}

// CycleFinished records the outcome and duration of one cycle.
func (m *Metrics) CycleFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	switch outcome {
	case "success":
		m.CyclesSucceeded.Add(1)
	case "skipped":
		m.CyclesSkipped.Add(1)
	default:
		m.CyclesFailed.Add(1)
	}
	m.LastCycleMs.Store(uint64(d.Milliseconds()))
}

func (m *Metrics) SetLastAverage(avg float64) {
	if m == nil {
		return
	}
	m.LastAvgVehicles.Store(uint64(avg * 100))
}

func (m *Metrics) AddSampled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FramesSampled.Add(uint64(n))
}

// LiveStarted increments the active session gauge and returns the matching decrement.
func (m *Metrics) LiveStarted() func() {
	if m == nil {
		return func() {}
	}
	m.LiveSessions.Add(1)
	return func() { m.LiveSessions.Add(-1) }
}

func (m *Metrics) ActiveLive() int64 {
	if m == nil {
		return 0
	}
	return m.LiveSessions.Load()
}

func (m *Metrics) AddLiveSent() {
	if m == nil {
		return
	}
	m.LiveFramesSent.Add(1)
}

func (m *Metrics) AddThrottled() {
	if m == nil {
		return
	}
	m.LiveThrottled.Add(1)
}

func (m *Metrics) AddEncodeError() {
	if m == nil {
		return
	}
	m.EncodeErrors.Add(1)
}

func (m *Metrics) AddReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Add(1)
}

// ObserveDetect records one detector call.
func (m *Metrics) ObserveDetect(found int, d time.Duration) {
	if m == nil {
		return
	}
	m.Detections.Add(uint64(found))
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
