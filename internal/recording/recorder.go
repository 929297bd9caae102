// Package recording captures derived metrics into hour-long buffers between an
// explicit start and stop, and turns the result into a delimited export.
package recording

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
)

var (
	// ErrAlreadyActive is returned by Start while a session is running.
	ErrAlreadyActive = errors.New("recording already active")

	// ErrNotActive is returned by Stop when no session is running.
	ErrNotActive = errors.New("recording not active")
)

// Session identifies one recording.
type Session struct {
	ID    string
	Start time.Time
}

// Recorder owns at most one active session. It is a stats.Sink: values
// ingested while no session is active are dropped.
type Recorder struct {
	clock    timeseries.Clock
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	session Session
	buffers map[stats.Metric]*timeseries.Buffer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock used to stamp session starts.
func WithClock(c timeseries.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithCapacity overrides the per-metric buffer size.
func WithCapacity(n int) Option {
	return func(r *Recorder) { r.capacity = n }
}

// NewRecorder creates an inactive recorder.
func NewRecorder(logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		clock:    timeseries.RealClock(),
		logger:   logger,
		capacity: timeseries.RecordingCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a session with one fresh buffer per tracked metric.
func (r *Recorder) Start() (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffers != nil {
		return Session{}, ErrAlreadyActive
	}

	r.session = Session{
		ID:    uuid.NewString(),
		Start: r.clock.Now(),
	}
	r.buffers = make(map[stats.Metric]*timeseries.Buffer, len(stats.Metrics))
	for _, m := range stats.Metrics {
		r.buffers[m] = timeseries.New(r.capacity)
	}

	r.logger.Info("recording_started",
		"session_id", r.session.ID,
		"start", r.session.Start.Format(time.RFC3339),
	)
	return r.session, nil
}

// Ingest mirrors one derived value into the session buffer for m.
func (r *Recorder) Ingest(m stats.Metric, label string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffers == nil {
		return
	}
	if b, ok := r.buffers[m]; ok {
		b.Push(label, value)
	}
}

// Stop closes the session and returns its export artifact. The buffers are
// released; the recorder is inactive afterwards.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffers == nil {
		return nil, ErrNotActive
	}

	a := &Artifact{
		ID:      r.session.ID,
		Start:   r.session.Start,
		Columns: make([]Column, 0, len(stats.Metrics)),
	}
	for _, m := range stats.Metrics {
		a.Columns = append(a.Columns, Column{
			Metric: m,
			Values: r.buffers[m].Values(),
		})
	}

	r.buffers = nil
	r.logger.Info("recording_stopped",
		"session_id", a.ID,
		"rows", a.Rows(),
		"duration", r.clock.Now().Sub(a.Start).String(),
	)
	r.session = Session{}
	return a, nil
}

// Active reports whether a session is running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers != nil
}

// Current returns the running session, if any.
func (r *Recorder) Current() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.buffers != nil
}

// Rows returns the number of intervals captured so far.
func (r *Recorder) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.buffers {
		if l := b.Len(); l > n {
			n = l
		}
	}
	return n
}
