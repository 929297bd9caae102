package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
)

type fakeSource struct {
	series    []stats.SeriesView
	state     string
	elapsed   time.Duration
	recording bool
	toggleErr error
	toggles   int
}

func (f *fakeSource) Display() []stats.SeriesView { return f.series }
func (f *fakeSource) State() string               { return f.state }
func (f *fakeSource) Elapsed() time.Duration      { return f.elapsed }
func (f *fakeSource) Recording() bool             { return f.recording }

func (f *fakeSource) ToggleRecording() (string, error) {
	f.toggles++
	if f.toggleErr != nil {
		return "", f.toggleErr
	}
	f.recording = !f.recording
	if f.recording {
		return "recording started", nil
	}
	return "recording saved", nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		state:   "polling",
		elapsed: 95 * time.Second,
		series: []stats.SeriesView{
			{
				Metric:  stats.VideoBitrate,
				Current: 2500,
				Points: []timeseries.Point{
					{Label: "10:00:00", Value: 2400},
					{Label: "10:00:01", Value: 2500},
				},
			},
			{Metric: stats.PacketLoss, Current: 1.5},
			{Metric: stats.RoundTripTime, Current: 42},
		},
	}
}

func TestNew(t *testing.T) {
	m := New(Config{Endpoint: "http://localhost:4000", MetricsAddr: "0.0.0.0:9100"})

	if m.endpoint != "http://localhost:4000" {
		t.Errorf("endpoint = %q", m.endpoint)
	}
	if m.state != "idle" {
		t.Errorf("state = %q, want idle", m.state)
	}
	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", m.width, m.height)
	}
	if m.Init() == nil {
		t.Error("Init() should return a tick command")
	}
}

func TestModel_TickRefreshesFromSource(t *testing.T) {
	src := newFakeSource()
	m := New(Config{Source: src})

	updated, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	got := updated.(Model)

	if got.state != "polling" {
		t.Errorf("state = %q, want polling", got.state)
	}
	if got.elapsed != 95*time.Second {
		t.Errorf("elapsed = %v", got.elapsed)
	}
	if v := got.Reading(stats.VideoBitrate); v != 2500 {
		t.Errorf("Reading(video) = %v, want 2500", v)
	}
	if v := got.Reading(stats.FrameRate); v != 0 {
		t.Errorf("Reading(missing) = %v, want 0", v)
	}
	if vals := got.Values(stats.VideoBitrate); len(vals) != 2 || vals[1] != 2500 {
		t.Errorf("Values(video) = %v", vals)
	}
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		key      string
		wantQuit bool
	}{
		{"q", true},
		{"ctrl+c", true},
		{"esc", true},
		{"x", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := New(Config{})
			var msg tea.KeyMsg
			switch tt.key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)}
			}
			updated, _ := m.Update(msg)
			if got := updated.(Model).quitting; got != tt.wantQuit {
				t.Errorf("quitting = %v, want %v", got, tt.wantQuit)
			}
		})
	}
}

func TestModel_DetailToggle(t *testing.T) {
	m := New(Config{})
	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}

	updated, _ := m.Update(key)
	if !updated.(Model).detailedView {
		t.Fatal("d should enable the detailed view")
	}
	updated, _ = updated.Update(key)
	if updated.(Model).detailedView {
		t.Fatal("second d should disable the detailed view")
	}
}

func TestModel_RecordingToggle(t *testing.T) {
	src := newFakeSource()
	m := New(Config{Source: src})
	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}

	updated, _ := m.Update(key)
	got := updated.(Model)
	if !got.recording || got.status != "recording started" {
		t.Errorf("after first r: recording=%v status=%q", got.recording, got.status)
	}

	updated, _ = got.Update(key)
	got = updated.(Model)
	if got.recording || got.status != "recording saved" {
		t.Errorf("after second r: recording=%v status=%q", got.recording, got.status)
	}
	if src.toggles != 2 {
		t.Errorf("toggles = %d, want 2", src.toggles)
	}
}

func TestModel_RecordingToggleError(t *testing.T) {
	src := newFakeSource()
	src.toggleErr = errors.New("disk full")
	m := New(Config{Source: src})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	got := updated.(Model)
	if !got.statusIsErr || got.status != "disk full" {
		t.Errorf("status = %q (err=%v)", got.status, got.statusIsErr)
	}
	if got.recording {
		t.Error("recording should stay off")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := New(Config{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	got := updated.(Model)
	if got.width != 160 || got.height != 50 {
		t.Errorf("size = %dx%d, want 160x50", got.width, got.height)
	}
}

func TestModel_StatusAndQuitMessages(t *testing.T) {
	m := New(Config{})

	updated, _ := m.Update(StatusMsg("saved /tmp/a.csv"))
	if got := updated.(Model).status; got != "saved /tmp/a.csv" {
		t.Errorf("status = %q", got)
	}

	updated, _ = updated.Update(ErrorMsg("connection lost"))
	if got := updated.(Model); got.status != "connection lost" || !got.statusIsErr {
		t.Errorf("error status = %q (err=%v)", got.status, got.statusIsErr)
	}
	updated, _ = updated.Update(StatusMsg("connected"))
	if got := updated.(Model); got.statusIsErr {
		t.Error("StatusMsg should clear the error style")
	}

	updated, cmd := updated.Update(QuitMsg{})
	if !updated.(Model).quitting || cmd == nil {
		t.Error("QuitMsg should quit")
	}
	if v := updated.View(); v != "" {
		t.Errorf("View() after quit = %q, want empty", v)
	}
}

func TestModel_View(t *testing.T) {
	src := newFakeSource()
	src.recording = true
	m := New(Config{Endpoint: "http://localhost:4000", Source: src})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	updated, _ = updated.Update(TickMsg(time.Now()))

	view := updated.View()
	for _, want := range []string{"go-whep-stats", "REC", "00:01:35", "2.50 Mbit/s", "1.50 %", "42.00 ms", "Last minute"} {
		if !strings.Contains(view, want) {
			t.Errorf("summary view missing %q", want)
		}
	}

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	detail := updated.View()
	for _, metric := range stats.Metrics {
		if !strings.Contains(detail, string(metric)) {
			t.Errorf("detailed view missing %s", metric)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{25 * time.Hour, "25:00:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := []struct {
		kbps float64
		want string
	}{
		{0, "0 kbit/s"},
		{128, "128 kbit/s"},
		{999.4, "999 kbit/s"},
		{1000, "1.00 Mbit/s"},
		{4250, "4.25 Mbit/s"},
	}
	for _, tt := range tests {
		if got := formatBitrate(tt.kbps); got != tt.want {
			t.Errorf("formatBitrate(%v) = %q, want %q", tt.kbps, got, tt.want)
		}
	}
}

func TestFormatResolution(t *testing.T) {
	if got := formatResolution(0, 720); got != "-" {
		t.Errorf("got %q, want -", got)
	}
	if got := formatResolution(1280, 720); got != "1280x720" {
		t.Errorf("got %q, want 1280x720", got)
	}
}
