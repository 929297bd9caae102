package stats

import (
	"time"

	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
)

// SetConfig configures a ChannelSet.
type SetConfig struct {
	// Clock stamps the initial live window and loss labels. Defaults to the
	// wall clock.
	Clock timeseries.Clock

	// Sinks receive every derived value. Nil entries are ignored.
	Sinks []Sink
}

// ChannelSet is the explicit context shared by the poller, the display and the
// exporter: the three channels, the loss tracker, one live buffer per metric
// and the latest reading of every metric.
//
// Route and UpdateLoss must be called from a single goroutine. Reads of the
// live buffers and readings are safe from any goroutine.
type ChannelSet struct {
	clock timeseries.Clock
	out   *fanout

	channels    map[Kind]*Channel
	loss        *LossTracker
	lastUpdated *Channel
}

// NewChannelSet creates the channels and pre-fills every live buffer with a
// full window of zeros ending now.
func NewChannelSet(cfg SetConfig) *ChannelSet {
	if cfg.Clock == nil {
		cfg.Clock = timeseries.RealClock()
	}

	now := cfg.Clock.Now()
	out := &fanout{
		live:     make(map[Metric]*timeseries.Buffer, len(Metrics)),
		readings: make(map[Metric]float64, len(Metrics)),
	}
	for _, m := range Metrics {
		out.live[m] = timeseries.NewLive(now)
		out.readings[m] = 0
	}
	for _, s := range cfg.Sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}

	set := &ChannelSet{
		clock: cfg.Clock,
		out:   out,
		channels: map[Kind]*Channel{
			KindVideo:     newChannel(KindVideo, deriveVideo, out),
			KindAudio:     newChannel(KindAudio, deriveAudio, out),
			KindTransport: newChannel(KindTransport, deriveTransport, out),
		},
	}
	set.loss = NewLossTracker(set.channels[KindAudio], set.channels[KindVideo])
	return set
}

// Channel returns the channel for kind, or nil for an unknown kind.
func (s *ChannelSet) Channel(kind Kind) *Channel {
	return s.channels[kind]
}

// Route hands one sample to its channel. Unknown kinds are ignored.
func (s *ChannelSet) Route(kind Kind, sample Sample) []Value {
	c, ok := s.channels[kind]
	if !ok {
		return nil
	}
	values := c.Ingest(sample)
	if kind == KindAudio || kind == KindVideo {
		s.lastUpdated = c
	}
	return values
}

// UpdateLoss recomputes packet loss from the audio and video channels and
// emits it. The label is the timestamp of the channel updated last, or now if
// neither has reported.
func (s *ChannelSet) UpdateLoss() float64 {
	loss := s.loss.Compute(s.lastUpdated)

	label := timeseries.FormatLabel(s.clock.Now())
	if s.lastUpdated != nil && s.lastUpdated.current != nil {
		label = timeseries.LabelFromMillis(s.lastUpdated.current.Timestamp)
	}
	s.out.emit(PacketLoss, label, loss)
	return loss
}

// Live returns the live buffer for m, or nil for an unknown metric.
func (s *ChannelSet) Live(m Metric) *timeseries.Buffer {
	return s.out.live[m]
}

// Reading returns the latest value of m.
func (s *ChannelSet) Reading(m Metric) float64 {
	s.out.mu.RLock()
	defer s.out.mu.RUnlock()
	return s.out.readings[m]
}

// Readings returns a copy of the latest value of every metric.
func (s *ChannelSet) Readings() map[Metric]float64 {
	s.out.mu.RLock()
	defer s.out.mu.RUnlock()

	out := make(map[Metric]float64, len(s.out.readings))
	for m, v := range s.out.readings {
		out[m] = v
	}
	return out
}

// Reset zeroes every reading and forgets all held samples. Live buffers keep
// their history. Sinks implementing Resetter are reset too; no zero values
// are pushed to any sink.
func (s *ChannelSet) Reset() {
	for _, c := range s.channels {
		c.reset()
	}
	s.lastUpdated = nil

	s.out.mu.Lock()
	for m := range s.out.readings {
		s.out.readings[m] = 0
	}
	s.out.mu.Unlock()

	for _, sink := range s.out.sinks {
		if r, ok := sink.(Resetter); ok {
			r.Reset()
		}
	}
}

// SeriesView is the display form of one live buffer.
type SeriesView struct {
	Metric  Metric             `json:"metric"`
	Current float64            `json:"current"`
	Points  []timeseries.Point `json:"points"`
}

// Display returns every metric's live window in catalogue order.
func (s *ChannelSet) Display() []SeriesView {
	readings := s.Readings()
	views := make([]SeriesView, 0, len(Metrics))
	for _, m := range Metrics {
		views = append(views, SeriesView{
			Metric:  m,
			Current: readings[m],
			Points:  s.out.live[m].Points(),
		})
	}
	return views
}

// Now returns the set's clock time.
func (s *ChannelSet) Now() time.Time {
	return s.clock.Now()
}
