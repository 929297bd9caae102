// Package timeseries provides the fixed-capacity sliding window used for every
// derived metric.
//
// A Buffer holds (label, value) pairs in insertion order. Once full, each Push
// evicts exactly one oldest pair, so Len() never exceeds Cap(). Two flavors are
// used by the rest of the program and differ only in capacity:
//
//   - live:      LiveCapacity points (one minute at the 1s poll interval)
//   - recording: RecordingCapacity points (one hour at the same interval)
//
// Writes come from the poller loop only. Reads come from the dashboard, the
// websocket feed and the exporter, so the buffer carries a read/write lock.
package timeseries

import (
	"sync"
	"time"
)

const (
	// LiveCapacity is the size of the live display window.
	LiveCapacity = 60

	// RecordingCapacity is the size of a recording buffer.
	RecordingCapacity = 3600

	// LabelLayout is the wall-clock layout of every point label.
	LabelLayout = "15:04:05"
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Point is a single labelled value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Buffer is a fixed-capacity FIFO window of points.
type Buffer struct {
	mu       sync.RWMutex
	points   []Point
	capacity int
}

// New creates an empty buffer. Capacity below 1 is clamped to 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		points:   make([]Point, 0, capacity),
		capacity: capacity,
	}
}

// NewLive creates a live buffer pre-filled with LiveCapacity zero points ending
// at now, so a fresh display renders a full window immediately.
func NewLive(now time.Time) *Buffer {
	b := New(LiveCapacity)
	b.Populate(LiveCapacity, now)
	return b
}

// Push appends a point, evicting the oldest one when at capacity.
func (b *Buffer) Push(label string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.points) == b.capacity {
		// Shift in place rather than reslice so the backing array never grows.
		copy(b.points, b.points[1:])
		b.points = b.points[:len(b.points)-1]
	}
	b.points = append(b.points, Point{Label: label, Value: value})
}

// Populate replaces the contents with n zero-valued points labelled one second
// apart, oldest first, the last one labelled ref. Only the newest Cap() points
// are kept when n exceeds capacity.
func (b *Buffer) Populate(n int, ref time.Time) {
	if n > b.capacity {
		n = b.capacity
	}
	if n < 0 {
		n = 0
	}

	points := make([]Point, 0, b.capacity)
	for i := n - 1; i >= 0; i-- {
		ts := ref.Add(-time.Duration(i) * time.Second)
		points = append(points, Point{Label: FormatLabel(ts), Value: 0})
	}

	b.mu.Lock()
	b.points = points
	b.mu.Unlock()
}

// Len returns the number of points currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.points)
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Points returns a copy of the points, oldest first.
func (b *Buffer) Points() []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Point, len(b.points))
	copy(out, b.points)
	return out
}

// Labels returns a copy of the labels, oldest first.
func (b *Buffer) Labels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.points))
	for i, p := range b.points {
		out[i] = p.Label
	}
	return out
}

// Values returns a copy of the values, oldest first.
func (b *Buffer) Values() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, len(b.points))
	for i, p := range b.points {
		out[i] = p.Value
	}
	return out
}

// Last returns the newest point. ok is false when the buffer is empty.
func (b *Buffer) Last() (p Point, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.points) == 0 {
		return Point{}, false
	}
	return b.points[len(b.points)-1], true
}

// FormatLabel renders t as a point label.
func FormatLabel(t time.Time) string {
	return t.Format(LabelLayout)
}

// LabelFromMillis renders a millisecond wall-clock timestamp as a point label.
func LabelFromMillis(ms float64) string {
	return FormatLabel(time.UnixMilli(int64(ms)))
}
