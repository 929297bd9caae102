package monitor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randomizedcoder/go-whep-stats/internal/compare"
	"github.com/randomizedcoder/go-whep-stats/internal/config"
	"github.com/randomizedcoder/go-whep-stats/internal/poller"
	"github.com/randomizedcoder/go-whep-stats/internal/stats"
	"github.com/randomizedcoder/go-whep-stats/internal/whep"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeSource produces steadily growing counters and dies after limit
// snapshots when limit > 0.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	limit int
}

func (s *fakeSource) Snapshot(ctx context.Context) (stats.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	n := float64(s.calls)
	ts := float64(time.Now().UnixMilli())
	return stats.Snapshot{
		stats.KindVideo: {
			Kind:            stats.KindVideo,
			Timestamp:       ts,
			BytesReceived:   125000 * n,
			PacketsReceived: 100 * n,
			FramesPerSecond: 30,
			FrameWidth:      1280,
			FrameHeight:     720,
		},
		stats.KindAudio: {
			Kind:            stats.KindAudio,
			Timestamp:       ts,
			BytesReceived:   4000 * n,
			PacketsReceived: 50 * n,
		},
		stats.KindTransport: {
			Kind:                 stats.KindTransport,
			Timestamp:            ts,
			PacketsReceived:      150 * n,
			CurrentRoundTripTime: 0.025,
		},
	}, nil
}

func (s *fakeSource) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit == 0 || s.calls < s.limit
}

type fakeConnection struct {
	src    *fakeSource
	closed atomic.Bool
}

func (c *fakeConnection) Source() poller.SampleSource { return c.src }

func (c *fakeConnection) Close(ctx context.Context) error {
	c.closed.Store(true)
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConnection
	limit int
	err   error
}

func (f *fakeConnector) Connect(ctx context.Context) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		f.conns = append(f.conns, nil)
		return nil, f.err
	}
	c := &fakeConnection{src: &fakeSource{limit: f.limit}}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.URL = "http://localhost:4000"
	cfg.InputID = "cam1"
	cfg.Interval = 100 * time.Millisecond
	cfg.Duration = 550 * time.Millisecond
	cfg.RecordDir = t.TempDir()
	cfg.MetricsAddr = ""
	cfg.TUIEnabled = false
	cfg.SkipPreflight = true
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffMax = 20 * time.Millisecond
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, cfg *config.Config, conn Connector) (*Monitor, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	m := New(cfg, testLogger(),
		WithConnector(conn),
		WithOutput(&out),
		WithoutSignals(),
	)
	return m, &out
}

// =============================================================================
// Run
// =============================================================================

func TestMonitor_RecordsAndExports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Record = true
	cfg.DumpMetrics = true
	conn := &fakeConnector{}
	m, out := newTestMonitor(t, cfg, conn)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if conn.count() != 1 {
		t.Errorf("connections = %d, want 1", conn.count())
	}
	if !conn.conns[0].closed.Load() {
		t.Error("connection should be closed on exit")
	}
	if m.Recording() {
		t.Error("recording should be stopped on exit")
	}

	saved := m.Saved()
	if len(saved) != 1 {
		t.Fatalf("saved = %v, want one export", saved)
	}
	if !strings.HasPrefix(saved[0], cfg.RecordDir) || !strings.HasSuffix(saved[0], ".csv") {
		t.Errorf("export path = %q", saved[0])
	}

	f, err := os.Open(saved[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cols, err := compare.Parse(f, ',')
	if err != nil {
		t.Fatalf("export does not parse: %v", err)
	}
	video, ok := cols.Column(string(stats.VideoBitrate))
	if !ok || len(video.Values) == 0 {
		t.Fatalf("video column missing or empty: %+v", video)
	}
	for _, v := range video.Values {
		if v <= 0 {
			t.Errorf("video bitrate %v should be positive", v)
		}
	}

	text := out.String()
	for _, want := range []string{"Exit Summary", "saved to", "whep_stats_polls_total", "whep_stats_video_bitrate_kbps"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if m.collector.GenerateSummary().Polls == 0 {
		t.Error("no polls counted")
	}
}

func TestMonitor_ReconnectsAfterTransportLoss(t *testing.T) {
	cfg := testConfig(t)
	cfg.Duration = 900 * time.Millisecond
	conn := &fakeConnector{limit: 2}
	m, _ := newTestMonitor(t, cfg, conn)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if conn.count() < 2 {
		t.Fatalf("connections = %d, want a reconnect", conn.count())
	}
	if m.collector.GenerateSummary().Reconnects == 0 {
		t.Error("reconnects not counted")
	}
	for i, c := range conn.conns {
		if !c.closed.Load() {
			t.Errorf("connection %d left open", i)
		}
	}
}

func TestMonitor_TransportLossWithoutReconnect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconnect = false
	cfg.Duration = 10 * time.Second
	conn := &fakeConnector{limit: 1}
	m, _ := newTestMonitor(t, cfg, conn)

	start := time.Now()
	err := m.Run(context.Background())
	if !errors.Is(err, poller.ErrTransportUnavailable) {
		t.Fatalf("Run() = %v, want ErrTransportUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Run should return as soon as the transport is gone")
	}
	if conn.count() != 1 {
		t.Errorf("connections = %d, want 1", conn.count())
	}
}

func TestMonitor_ClientErrorIsNotRetried(t *testing.T) {
	cfg := testConfig(t)
	cfg.Duration = 10 * time.Second
	conn := &fakeConnector{err: &whep.StatusError{Method: http.MethodPost, Code: http.StatusNotFound}}
	m, _ := newTestMonitor(t, cfg, conn)

	err := m.Run(context.Background())
	var se *whep.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("Run() = %v, want 404 StatusError", err)
	}
	if conn.count() != 1 {
		t.Errorf("connections = %d, want 1", conn.count())
	}
}

func TestMonitor_ContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Duration = 0
	m, _ := newTestMonitor(t, cfg, &fakeConnector{})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestMonitor_CheckMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Check = true
	cfg.SkipPreflight = false
	cfg.URL = ""
	conn := &fakeConnector{}
	m, out := newTestMonitor(t, cfg, conn)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if conn.count() != 0 {
		t.Error("check mode should not connect")
	}
	if !strings.Contains(out.String(), "Preflight checks") {
		t.Errorf("output = %q", out.String())
	}
}

// =============================================================================
// Recording control and display
// =============================================================================

func TestMonitor_ToggleRecording(t *testing.T) {
	cfg := testConfig(t)
	m, _ := newTestMonitor(t, cfg, &fakeConnector{})

	notice, err := m.ToggleRecording()
	if err != nil {
		t.Fatal(err)
	}
	if !m.Recording() || !strings.Contains(notice, "started") {
		t.Fatalf("after first toggle: recording=%v notice=%q", m.Recording(), notice)
	}

	feed(m, 3)

	notice, err = m.ToggleRecording()
	if err != nil {
		t.Fatal(err)
	}
	if m.Recording() || !strings.Contains(notice, "saved to") {
		t.Fatalf("after second toggle: recording=%v notice=%q", m.Recording(), notice)
	}
	if len(m.Saved()) != 1 {
		t.Errorf("Saved() = %v", m.Saved())
	}
}

// feed routes n snapshots from a fakeSource into the monitor's channel set.
func feed(m *Monitor, n int) {
	src := &fakeSource{}
	for i := 0; i < n; i++ {
		snap, _ := src.Snapshot(context.Background())
		for _, kind := range stats.Kinds {
			m.Set().Route(kind, snap[kind])
		}
		m.Set().UpdateLoss()
	}
}

func TestMonitor_ExportFailureKeepsRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.RecordDir = filepath.Join(t.TempDir(), "missing")
	m, _ := newTestMonitor(t, cfg, &fakeConnector{})

	if _, err := m.StartRecording(); err != nil {
		t.Fatal(err)
	}
	feed(m, 3)

	if _, err := m.StopRecording(); err == nil {
		t.Fatal("StopRecording() into a missing directory should fail")
	}
	if m.Recording() {
		t.Error("session should be closed after the failed export")
	}
	if m.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", m.Pending())
	}

	// Retry after the directory appears.
	if err := os.MkdirAll(cfg.RecordDir, 0o755); err != nil {
		t.Fatal(err)
	}
	paths, err := m.RetryExports()
	if err != nil {
		t.Fatalf("RetryExports() = %v", err)
	}
	if len(paths) != 1 || m.Pending() != 0 {
		t.Fatalf("paths = %v pending = %d", paths, m.Pending())
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cols, err := compare.Parse(f, ',')
	if err != nil {
		t.Fatalf("retried export does not parse: %v", err)
	}
	if cols.Len() != 3 {
		t.Errorf("rows = %d, want 3", cols.Len())
	}
}

func TestMonitor_PendingRetriedOnNextStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.RecordDir = filepath.Join(t.TempDir(), "later")
	m, _ := newTestMonitor(t, cfg, &fakeConnector{})

	m.StartRecording()
	feed(m, 2)
	if _, err := m.StopRecording(); err == nil {
		t.Fatal("expected export failure")
	}

	if err := os.MkdirAll(cfg.RecordDir, 0o755); err != nil {
		t.Fatal(err)
	}
	m.StartRecording()
	feed(m, 2)
	if _, err := m.StopRecording(); err != nil {
		t.Fatalf("StopRecording() = %v", err)
	}
	if got := len(m.Saved()); got != 2 {
		t.Errorf("Saved() = %d exports, want 2", got)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", m.Pending())
	}
}

func TestMonitor_ShutdownExportsToFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Record = true
	cfg.RecordDir = filepath.Join(t.TempDir(), "missing")
	fallback := t.TempDir()

	var out bytes.Buffer
	m := New(cfg, testLogger(),
		WithConnector(&fakeConnector{}),
		WithOutput(&out),
		WithoutSignals(),
		WithFallbackDir(fallback),
	)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	saved := m.Saved()
	if len(saved) != 1 || !strings.HasPrefix(saved[0], fallback) {
		t.Fatalf("Saved() = %v, want one export under %s", saved, fallback)
	}
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", m.Pending())
	}
}

func TestMonitor_ShutdownReportsUnsavedRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Record = true
	cfg.RecordDir = filepath.Join(t.TempDir(), "missing")

	var out bytes.Buffer
	m := New(cfg, testLogger(),
		WithConnector(&fakeConnector{}),
		WithOutput(&out),
		WithoutSignals(),
		WithFallbackDir(""),
	)
	err := m.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "could not be exported") {
		t.Fatalf("Run() = %v, want export error", err)
	}
	if m.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", m.Pending())
	}
	if !strings.Contains(out.String(), "was NOT saved") {
		t.Errorf("summary does not mention the unsaved recording:\n%s", out.String())
	}
}

func TestMonitor_RecordingStartedLoggedOnce(t *testing.T) {
	var logs bytes.Buffer
	m := New(testConfig(t), slog.New(slog.NewTextHandler(&logs, nil)),
		WithConnector(&fakeConnector{}),
		WithOutput(io.Discard),
		WithoutSignals(),
	)
	if _, err := m.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(logs.String(), "recording_started"); got != 1 {
		t.Errorf("recording_started logged %d times, want 1:\n%s", got, logs.String())
	}
}

func TestMonitor_ReconnectNoticeWithoutDashboard(t *testing.T) {
	m, _ := newTestMonitor(t, testConfig(t), &fakeConnector{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.onReconnect(2, 1500*time.Millisecond, errors.New("ice failed"))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onReconnect blocked with no dashboard")
	}
	if got := m.collector.GenerateSummary().Reconnects; got != 1 {
		t.Errorf("reconnects = %d, want 1", got)
	}
}

func TestMonitor_StopRecordingWhenIdle(t *testing.T) {
	m, _ := newTestMonitor(t, testConfig(t), &fakeConnector{})
	if _, err := m.StopRecording(); err == nil {
		t.Error("expected error when no recording is active")
	}
}

func TestMonitor_DisplayBeforeRun(t *testing.T) {
	m, _ := newTestMonitor(t, testConfig(t), &fakeConnector{})

	if m.State() != "idle" {
		t.Errorf("State() = %q, want idle", m.State())
	}
	if m.Elapsed() != 0 {
		t.Errorf("Elapsed() = %v", m.Elapsed())
	}
	if got := len(m.Display()); got != len(stats.Metrics) {
		t.Errorf("Display() has %d series, want %d", got, len(stats.Metrics))
	}
	u := m.Update()
	if u.Type != "stats" || u.Recording || len(u.Series) != len(stats.Metrics) {
		t.Errorf("Update() = %+v", u)
	}
}

func TestMonitor_Endpoint(t *testing.T) {
	cfg := testConfig(t)
	m, _ := newTestMonitor(t, cfg, &fakeConnector{})
	if got := m.Endpoint(); got != "http://localhost:4000/api/whep?inputId=cam1" {
		t.Errorf("Endpoint() = %q", got)
	}

	cfg = testConfig(t)
	cfg.WHEPEndpoint = "https://edge.example.com/whep/abc"
	m, _ = newTestMonitor(t, cfg, &fakeConnector{})
	if got := m.Endpoint(); got != cfg.WHEPEndpoint {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", errors.New("boom"), true},
		{"transport", poller.ErrTransportUnavailable, true},
		{"not found", &whep.StatusError{Code: 404}, false},
		{"unauthorized", &whep.StatusError{Code: 401}, false},
		{"rate limited", &whep.StatusError{Code: 429}, true},
		{"server", &whep.StatusError{Code: 503}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(3723 * time.Second); got != "01:02:03" {
		t.Errorf("formatDuration = %q", got)
	}
}
