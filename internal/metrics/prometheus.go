package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the relay engine. All
// Record and Set methods are nil-safe so components can run without
// metrics in tests.
type Metrics struct {
	// Device I/O metrics
	ChunksRead    prometheus.Counter
	ChunksWritten prometheus.Counter
	ReadErrors    prometheus.Counter
	WriteErrors   prometheus.Counter

	// Level metrics
	RawLevel    prometheus.Gauge
	DampedLevel prometheus.Gauge

	// Trigger metrics
	EngineState     prometheus.Gauge
	Episodes        prometheus.Counter
	EpisodeDuration prometheus.Histogram

	// Delay ring metrics
	RingOccupancy prometheus.Gauge
	RingTarget    prometheus.Gauge

	// Filter metrics
	EQBandFaults  prometheus.Counter
	EQChunkResets prometheus.Counter

	// Archive metrics
	ArchiveWritten prometheus.Counter
	ArchiveDropped prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Device I/O metrics
		ChunksRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_chunks_read_total",
			Help: "Total number of chunks read from the input device",
		}),
		ChunksWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_chunks_written_total",
			Help: "Total number of chunks written to the output device",
		}),
		ReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_read_errors_total",
			Help: "Total number of input device read errors",
		}),
		WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_write_errors_total",
			Help: "Total number of output device write errors",
		}),

		// Level metrics
		RawLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_raw_level",
			Help: "Mean absolute sample level of the last input chunk",
		}),
		DampedLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_damped_level",
			Help: "Envelope-followed input level used for triggering",
		}),

		// Trigger metrics
		EngineState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_engine_state",
			Help: "Current engine state (0=idle, 1=dead_time, 2=recording, 3=playing, 4=streaming)",
		}),
		Episodes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_episodes_total",
			Help: "Total number of completed record/replay episodes",
		}),
		EpisodeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_episode_duration_seconds",
			Help:    "Duration of captured episodes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),

		// Delay ring metrics
		RingOccupancy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ring_occupancy_chunks",
			Help: "Current number of chunks queued in the delay ring",
		}),
		RingTarget: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ring_target_chunks",
			Help: "Target delay ring depth in chunks",
		}),

		// Filter metrics
		EQBandFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_eq_band_faults_total",
			Help: "Total number of EQ bands bypassed due to unusable coefficients",
		}),
		EQChunkResets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_eq_chunk_resets_total",
			Help: "Total number of chunks where a band produced non-finite output and was reset",
		}),

		// Archive metrics
		ArchiveWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_archive_written_total",
			Help: "Total number of capture episodes written to disk",
		}),
		ArchiveDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_archive_dropped_total",
			Help: "Total number of capture episodes dropped because the archive queue was full",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordChunkRead increments the chunks read counter
func (m *Metrics) RecordChunkRead() {
	if m == nil {
		return
	}
	m.ChunksRead.Inc()
}

// RecordChunkWritten increments the chunks written counter
func (m *Metrics) RecordChunkWritten() {
	if m == nil {
		return
	}
	m.ChunksWritten.Inc()
}

// RecordReadError increments the read errors counter
func (m *Metrics) RecordReadError() {
	if m == nil {
		return
	}
	m.ReadErrors.Inc()
}

// RecordWriteError increments the write errors counter
func (m *Metrics) RecordWriteError() {
	if m == nil {
		return
	}
	m.WriteErrors.Inc()
}

// SetLevels sets the raw and damped level gauges
func (m *Metrics) SetLevels(raw, damped float64) {
	if m == nil {
		return
	}
	m.RawLevel.Set(raw)
	m.DampedLevel.Set(damped)
}

// SetEngineState sets the engine state gauge
func (m *Metrics) SetEngineState(state int) {
	if m == nil {
		return
	}
	m.EngineState.Set(float64(state))
}

// RecordEpisode records a completed capture episode
func (m *Metrics) RecordEpisode(durationSeconds float64) {
	if m == nil {
		return
	}
	m.Episodes.Inc()
	m.EpisodeDuration.Observe(durationSeconds)
}

// SetRingDepth sets the delay ring occupancy and target gauges
func (m *Metrics) SetRingDepth(occupancy, target int) {
	if m == nil {
		return
	}
	m.RingOccupancy.Set(float64(occupancy))
	m.RingTarget.Set(float64(target))
}

// RecordEQBandFault increments the EQ band fault counter
func (m *Metrics) RecordEQBandFault() {
	if m == nil {
		return
	}
	m.EQBandFaults.Inc()
}

// RecordEQChunkReset increments the EQ chunk reset counter
func (m *Metrics) RecordEQChunkReset() {
	if m == nil {
		return
	}
	m.EQChunkResets.Inc()
}

// RecordArchiveWritten increments the archive written counter
func (m *Metrics) RecordArchiveWritten() {
	if m == nil {
		return
	}
	m.ArchiveWritten.Inc()
}

// RecordArchiveDropped increments the archive dropped counter
func (m *Metrics) RecordArchiveDropped() {
	if m == nil {
		return
	}
	m.ArchiveDropped.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
