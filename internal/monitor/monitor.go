// Package monitor wires a WHEP subscription, the stats engine, recording,
// the Prometheus collector, the websocket feed and the terminal dashboard
// into one run.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-whep-stats/internal/config"
	"github.com/randomizedcoder/go-whep-stats/internal/feed"
	"github.com/randomizedcoder/go-whep-stats/internal/metrics"
	"github.com/randomizedcoder/go-whep-stats/internal/poller"
	"github.com/randomizedcoder/go-whep-stats/internal/preflight"
	"github.com/randomizedcoder/go-whep-stats/internal/recording"
	"github.com/randomizedcoder/go-whep-stats/internal/stats"
	"github.com/randomizedcoder/go-whep-stats/internal/supervisor"
	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
	"github.com/randomizedcoder/go-whep-stats/internal/tui"
	"github.com/randomizedcoder/go-whep-stats/internal/whep"
)

// shutdownTimeout bounds the graceful shutdown of every component.
const shutdownTimeout = 10 * time.Second

// Monitor coordinates all components for one monitoring run.
type Monitor struct {
	config   *config.Config
	logger   *slog.Logger
	version  string
	endpoint string

	connector Connector
	clock     timeseries.Clock
	out       io.Writer
	signals   bool

	registry  *prometheus.Registry
	collector *metrics.Collector
	server    *metrics.Server
	hub       *feed.Hub
	recorder  *recording.Recorder
	set       *stats.ChannelSet
	super     *supervisor.Supervisor

	mu        sync.Mutex
	poller    *poller.Poller
	startTime time.Time
	saved     []savedRecording
	pending   []*recording.Artifact
	program   *tea.Program

	fallbackDir string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConnector replaces the WHEP connector.
func WithConnector(c Connector) Option {
	return func(m *Monitor) { m.connector = c }
}

// WithFallbackDir sets where shutdown exports recordings the record
// directory refused. An empty dir disables the fallback.
func WithFallbackDir(dir string) Option {
	return func(m *Monitor) { m.fallbackDir = dir }
}

// WithClock sets the clock used by the stats engine and recorder.
func WithClock(c timeseries.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithOutput redirects the preflight report and exit summary.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) { m.out = w }
}

// WithVersion sets the version reported in the info metric.
func WithVersion(v string) Option {
	return func(m *Monitor) { m.version = v }
}

// WithoutSignals stops Run from installing SIGINT/SIGTERM handlers.
func WithoutSignals() Option {
	return func(m *Monitor) { m.signals = false }
}

// New creates a Monitor with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		config:  cfg,
		logger:  logger,
		version: "dev",
		clock:   timeseries.RealClock(),
		out:     os.Stdout,
		signals: true,

		fallbackDir: defaultFallbackDir(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.endpoint = cfg.WHEPEndpoint
	if m.endpoint == "" {
		m.endpoint = whep.Endpoint(cfg.URL, cfg.InputID)
	}
	if m.connector == nil {
		m.connector = NewWHEPConnector(WHEPConfig{
			BaseURL:   cfg.URL,
			Endpoint:  m.endpoint,
			Token:     cfg.Token,
			PionLevel: cfg.PionLevel,
		}, logger)
	}

	m.registry = prometheus.NewRegistry()
	m.collector = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:  m.version,
		Endpoint: m.endpoint,
	}, m.registry)
	m.recorder = recording.NewRecorder(logger, recording.WithClock(m.clock))
	m.set = stats.NewChannelSet(stats.SetConfig{
		Clock: m.clock,
		Sinks: []stats.Sink{m.recorder, m.collector},
	})
	m.hub = feed.NewHub(logger, cfg.FeedOrigins...)

	if cfg.MetricsAddr != "" {
		m.server = metrics.NewServer(metrics.ServerConfig{
			Addr:     cfg.MetricsAddr,
			Gatherer: m.registry,
			Ready:    m.connected,
			Handlers: map[string]http.Handler{"/ws": m.hub},
		}, logger)
	}

	m.super = supervisor.New(supervisor.Config{
		Session: m.session,
		Backoff: supervisor.NewBackoff(time.Now().UnixNano(), supervisor.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  0.4,
		}),
		Logger:        logger,
		Reconnect:     cfg.Reconnect,
		MaxReconnects: cfg.MaxReconnects,
		Retryable:     retryable,
		Callbacks: supervisor.Callbacks{
			OnReconnect: m.onReconnect,
		},
	})
	return m
}

// Run executes the monitoring session. It blocks until the configured
// duration elapses, a signal arrives, the dashboard quits, ctx is cancelled
// or the connection is lost for good.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.startTime = m.clock.Now()
	m.mu.Unlock()

	if !m.config.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			BaseURL:   m.config.URL,
			RecordDir: m.config.RecordDir,
		})
		preflight.PrintResults(m.out, result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}
	if m.config.Check {
		return nil
	}

	if m.server != nil {
		if err := m.server.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sigCh chan os.Signal
	if m.signals {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)
	}

	if m.config.Record {
		if _, err := m.StartRecording(); err != nil {
			return err
		}
	}

	superDone := make(chan error, 1)
	go func() {
		superDone <- m.super.Run(ctx)
	}()

	tuiDone := m.startTUI()

	var durationTimer <-chan time.Time
	if m.config.Duration > 0 {
		timer := time.NewTimer(m.config.Duration)
		defer timer.Stop()
		durationTimer = timer.C
	}

	var runErr error
	superFinished := false
	select {
	case sig := <-sigCh:
		m.logger.Info("received_signal", "signal", sig.String())
	case <-durationTimer:
		m.logger.Info("duration_elapsed", "duration", m.config.Duration.String())
	case <-tuiDone:
		m.logger.Info("dashboard_closed")
	case <-ctx.Done():
		m.logger.Info("context_cancelled")
	case err := <-superDone:
		superFinished = true
		if err != nil && ctx.Err() == nil {
			m.logger.Error("connection_lost", "error", err)
			runErr = err
		}
	}

	cancel()
	if !superFinished {
		select {
		case <-superDone:
		case <-time.After(shutdownTimeout):
			m.logger.Warn("shutdown_incomplete", "component", "session")
		}
	}
	m.stopTUI(tuiDone)

	if m.recorder.Active() {
		if _, err := m.StopRecording(); err != nil {
			m.logger.Error("recording_export_failed", "error", err)
		}
	}
	if err := m.flushExports(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	m.hub.Close()
	if m.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			m.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	if m.config.DumpMetrics {
		if err := metrics.WriteText(m.out, m.registry); err != nil {
			m.logger.Warn("metrics_dump_failed", "error", err)
		}
	}
	m.printExitSummary()

	return runErr
}

// session runs one connection: connect, poll until the transport goes
// away or ctx ends, disconnect.
func (m *Monitor) session(ctx context.Context) error {
	conn, err := m.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	m.collector.SetConnected(true)
	m.notify(tui.StatusMsg("connected to " + m.endpoint))
	defer func() {
		m.collector.SetConnected(false)
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			m.logger.Warn("disconnect_failed", "error", err)
		}
	}()

	p := poller.New(poller.Config{
		Source:   conn.Source(),
		Set:      m.set,
		Interval: m.config.Interval,
		Logger:   m.logger,
		Clock:    m.clock,
		Callbacks: poller.Callbacks{
			OnTick: m.onTick,
			OnSkip: m.collector.TickSkipped,
			OnError: func(error) {
				m.collector.PollFailed()
			},
		},
	})
	m.mu.Lock()
	m.poller = p
	m.mu.Unlock()

	return p.Run(ctx)
}

// =============================================================================
// Callbacks
// =============================================================================

func (m *Monitor) onTick() {
	m.collector.PollCompleted()
	m.collector.SetElapsed(m.Elapsed())
	m.hub.Broadcast(m.Update())
}

func (m *Monitor) onReconnect(attempt int, delay time.Duration, cause error) {
	m.collector.Reconnected()
	m.logger.Info("reconnecting",
		"attempt", attempt,
		"delay", delay.String(),
		"cause", cause,
	)
	m.notify(tui.ErrorMsg(fmt.Sprintf("connection lost, reconnecting in %s (attempt %d)",
		delay.Round(100*time.Millisecond), attempt)))
}

// notify posts msg to the dashboard, if one is running. It never blocks, so
// it is safe from inside the dashboard's own callbacks.
func (m *Monitor) notify(msg tea.Msg) {
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}

func (m *Monitor) connected() bool {
	p := m.currentPoller()
	return p != nil && p.State() == poller.StatePolling
}

func (m *Monitor) currentPoller() *poller.Poller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poller
}

// =============================================================================
// Display view (tui.Source)
// =============================================================================

// Display returns every metric's current reading and live window.
func (m *Monitor) Display() []stats.SeriesView {
	return m.set.Display()
}

// State names what the monitor is doing right now.
func (m *Monitor) State() string {
	if m.super.State() == supervisor.StateBackoff {
		return supervisor.StateBackoff.String()
	}
	p := m.currentPoller()
	if p == nil {
		return poller.StateIdle.String()
	}
	return p.State().String()
}

// Elapsed returns the time since Run started.
func (m *Monitor) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startTime.IsZero() {
		return 0
	}
	return m.clock.Now().Sub(m.startTime)
}

// Update builds the websocket feed message for the current state.
func (m *Monitor) Update() feed.Update {
	return feed.Update{
		Type:           "stats",
		Time:           m.clock.Now().UnixMilli(),
		State:          m.State(),
		ElapsedSeconds: m.Elapsed().Seconds(),
		Recording:      m.recorder.Active(),
		Series:         m.set.Display(),
	}
}

// Registry returns the Prometheus registry backing /metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Set returns the shared channel set.
func (m *Monitor) Set() *stats.ChannelSet {
	return m.set
}

// Endpoint returns the WHEP endpoint the monitor subscribes to.
func (m *Monitor) Endpoint() string {
	return m.endpoint
}

// =============================================================================
// Dashboard
// =============================================================================

func (m *Monitor) startTUI() <-chan struct{} {
	if !m.config.TUIEnabled {
		return nil
	}
	p := tea.NewProgram(tui.New(tui.Config{
		Endpoint:    m.endpoint,
		MetricsAddr: m.config.MetricsAddr,
		Source:      m,
	}), tea.WithAltScreen())

	m.mu.Lock()
	m.program = p
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(); err != nil {
			m.logger.Error("dashboard_failed", "error", err)
		}
	}()
	return done
}

func (m *Monitor) stopTUI(done <-chan struct{}) {
	if done == nil {
		return
	}
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()

	tui.SendQuit(p)
	select {
	case <-done:
	case <-time.After(time.Second):
		p.Kill()
		<-done
	}
}
