package stats

import (
	"sync"

	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
)

// Sink receives every derived value with the same label it was stored under.
// The recording session and the Prometheus collector are sinks.
type Sink interface {
	Ingest(m Metric, label string, value float64)
}

// Resetter is implemented by sinks that keep their own copy of the latest
// readings. ChannelSet.Reset calls it; sinks without it see nothing.
type Resetter interface {
	Reset()
}

// Value is one derived metric value.
type Value struct {
	Metric Metric
	Value  float64
}

// deriveFunc computes a kind's metrics from its two latest samples.
// prev is nil before the second sample.
type deriveFunc func(prev, cur *Sample) []Value

// fanout is where channel output lands: live buffers, latest readings, sinks.
type fanout struct {
	live  map[Metric]*timeseries.Buffer
	sinks []Sink

	mu       sync.RWMutex
	readings map[Metric]float64
}

func (f *fanout) emit(m Metric, label string, v float64) {
	if b, ok := f.live[m]; ok {
		b.Push(label, v)
	}

	f.mu.Lock()
	f.readings[m] = v
	f.mu.Unlock()

	for _, s := range f.sinks {
		s.Ingest(m, label, v)
	}
}

// Channel holds the last two samples of one Kind.
//
// Ingest never reorders: the new sample always becomes current and the old
// current becomes previous, whatever their timestamps.
type Channel struct {
	kind     Kind
	previous *Sample
	current  *Sample
	derive   deriveFunc
	out      *fanout
}

func newChannel(kind Kind, derive deriveFunc, out *fanout) *Channel {
	return &Channel{kind: kind, derive: derive, out: out}
}

// Kind returns the channel's kind.
func (c *Channel) Kind() Kind {
	return c.kind
}

// Ingest shifts s in as the current sample, derives the kind's metrics and
// emits each of them labelled with the sample timestamp.
func (c *Channel) Ingest(s Sample) []Value {
	s.Kind = c.kind
	c.previous = c.current
	c.current = &s

	values := c.derive(c.previous, c.current)
	label := timeseries.LabelFromMillis(s.Timestamp)
	for _, v := range values {
		c.out.emit(v.Metric, label, v.Value)
	}
	return values
}

// Current returns the latest sample, or nil.
func (c *Channel) Current() *Sample {
	return c.current
}

// Previous returns the sample before the latest one, or nil.
func (c *Channel) Previous() *Sample {
	return c.previous
}

// DeltaSeconds returns the elapsed time between the two held samples.
func (c *Channel) DeltaSeconds() (float64, bool) {
	return DeltaSeconds(c.previous, c.current)
}

// reset forgets both samples.
func (c *Channel) reset() {
	c.previous = nil
	c.current = nil
}

func deriveVideo(prev, cur *Sample) []Value {
	return []Value{
		{VideoBitrate, Rate(prev, cur, BytesReceived, bitsPerKilobit)},
		{JitterBufferDelayMs, averageJitterBufferDelay(prev, cur)},
		{FrameRate, cur.FramesPerSecond},
		{KeyFrames, cur.KeyFramesDecoded},
		{PLICount, cur.PLICount},
		{NACKCount, cur.NACKCount},
		{FreezeCount, cur.FreezeCount},
		{FreezeDuration, cur.TotalFreezesDuration},
		{FrameWidth, cur.FrameWidth},
		{FrameHeight, cur.FrameHeight},
	}
}

func deriveAudio(prev, cur *Sample) []Value {
	return []Value{
		{AudioBitrate, Rate(prev, cur, BytesReceived, bitsPerKilobit)},
	}
}

func deriveTransport(prev, cur *Sample) []Value {
	return []Value{
		{PacketsReceivedRate, Rate(prev, cur, PacketsReceived, 1)},
		{RoundTripTime, cur.CurrentRoundTripTime * 1000},
	}
}
