// Package metrics exposes go-whep-stats readings as Prometheus metrics.
//
// Every derived stats.Metric gets one gauge, whep_stats_<metric>, mirroring the
// last value the channel set produced. Poll bookkeeping is exported as
// counters. The Collector is a stats.Sink.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// Namespace prefixes every metric name.
const Namespace = "whep_stats"

var metricHelp = map[stats.Metric]string{
	stats.VideoBitrate:        "Inbound video bitrate in kbit/s",
	stats.AudioBitrate:        "Inbound audio bitrate in kbit/s",
	stats.PacketsReceivedRate: "Packets received per second on the selected candidate pair",
	stats.PacketLoss:          "Audio and video packet loss in percent",
	stats.RoundTripTime:       "Current round trip time in milliseconds",
	stats.JitterBufferDelayMs: "Average jitter buffer delay in milliseconds",
	stats.FrameRate:           "Decoded video frames per second",
	stats.KeyFrames:           "Keyframes decoded since the stream started",
	stats.PLICount:            "Picture loss indications sent",
	stats.NACKCount:           "Negative acknowledgements sent",
	stats.FreezeCount:         "Video freezes observed",
	stats.FreezeDuration:      "Total video freeze duration in seconds",
	stats.FrameWidth:          "Decoded frame width in pixels",
	stats.FrameHeight:         "Decoded frame height in pixels",
}

// Collector owns the Prometheus instruments for one process.
type Collector struct {
	// --- Session ---
	info           *prometheus.GaugeVec
	connectionUp   prometheus.Gauge
	recording      prometheus.Gauge
	elapsedSeconds prometheus.Gauge

	// --- Polling ---
	pollsTotal        prometheus.Counter
	ticksSkippedTotal prometheus.Counter
	pollErrorsTotal   prometheus.Counter
	reconnectsTotal   prometheus.Counter

	// --- Derived readings ---
	readings map[stats.Metric]prometheus.Gauge

	mu         sync.Mutex
	startTime  time.Time
	polls      int64
	skipped    int64
	errors     int64
	reconnects int64
	recordings int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version  string
	Endpoint string
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "info",
			Help:      "Information about the monitored stream (value always 1)",
		}, []string{"version", "endpoint"}),
		connectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connection_up",
			Help:      "1 while the peer connection is usable",
		}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "recording_active",
			Help:      "1 while a recording session is active",
		}),
		elapsedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_elapsed_seconds",
			Help:      "Seconds since polling started on the current connection",
		}),
		pollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "polls_total",
			Help:      "Snapshots ingested",
		}),
		ticksSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks dropped because a retrieval was still in flight",
		}),
		pollErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poll_errors_total",
			Help:      "Failed stats retrievals",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconnects_total",
			Help:      "Connections re-established after the transport went away",
		}),
		readings:  make(map[stats.Metric]prometheus.Gauge, len(stats.Metrics)),
		startTime: time.Now(),
	}

	registry.MustRegister(
		c.info,
		c.connectionUp,
		c.recording,
		c.elapsedSeconds,
		c.pollsTotal,
		c.ticksSkippedTotal,
		c.pollErrorsTotal,
		c.reconnectsTotal,
	)

	for _, m := range stats.Metrics {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      string(m),
			Help:      metricHelp[m],
		})
		registry.MustRegister(g)
		c.readings[m] = g
	}

	c.info.WithLabelValues(cfg.Version, cfg.Endpoint).Set(1)
	return c
}

// =============================================================================
// stats.Sink
// =============================================================================

// Ingest sets the gauge for m. The label is not exported.
func (c *Collector) Ingest(m stats.Metric, _ string, value float64) {
	if g, ok := c.readings[m]; ok {
		g.Set(value)
	}
}

// Reset zeroes every reading gauge. Counters and session gauges are kept.
func (c *Collector) Reset() {
	for _, g := range c.readings {
		g.Set(0)
	}
}

var (
	_ stats.Sink     = (*Collector)(nil)
	_ stats.Resetter = (*Collector)(nil)
)

// =============================================================================
// Event Recording Methods
// =============================================================================

// PollCompleted records one ingested snapshot.
func (c *Collector) PollCompleted() {
	c.pollsTotal.Inc()

	c.mu.Lock()
	c.polls++
	c.mu.Unlock()
}

// TickSkipped records one dropped tick.
func (c *Collector) TickSkipped() {
	c.ticksSkippedTotal.Inc()

	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

// PollFailed records one failed retrieval.
func (c *Collector) PollFailed() {
	c.pollErrorsTotal.Inc()

	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Reconnected records a new connection after a transport loss.
func (c *Collector) Reconnected() {
	c.reconnectsTotal.Inc()

	c.mu.Lock()
	c.reconnects++
	c.mu.Unlock()
}

// SetConnected updates connection_up.
func (c *Collector) SetConnected(up bool) {
	c.connectionUp.Set(boolGauge(up))
}

// SetRecording updates recording_active. Each transition to active counts
// as one recording in the summary.
func (c *Collector) SetRecording(active bool) {
	c.recording.Set(boolGauge(active))
	if active {
		c.mu.Lock()
		c.recordings++
		c.mu.Unlock()
	}
}

// SetElapsed updates session_elapsed_seconds.
func (c *Collector) SetElapsed(d time.Duration) {
	c.elapsedSeconds.Set(d.Seconds())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration   time.Duration
	Polls      int64
	Skipped    int64
	Errors     int64
	Reconnects int64
	Recordings int64
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Summary{
		Duration:   time.Since(c.startTime),
		Polls:      c.polls,
		Skipped:    c.skipped,
		Errors:     c.errors,
		Reconnects: c.reconnects,
		Recordings: c.recordings,
	}
}
