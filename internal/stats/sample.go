// Package stats turns cumulative WebRTC transport counters into per-interval
// metrics.
//
// Samples arrive once per poll, partitioned by Kind. Each Kind has one Channel
// holding the previous and current Sample; derived values are fanned out to the
// channel set's live buffers, to the latest readings used for display, and to
// every injected Sink (the recording session and the Prometheus collector).
package stats

// Kind discriminates the three sample partitions.
type Kind string

const (
	KindVideo     Kind = "video"
	KindAudio     Kind = "audio"
	KindTransport Kind = "transport"
)

// Kinds lists every Kind in routing order.
var Kinds = []Kind{KindVideo, KindAudio, KindTransport}

// Sample is one immutable snapshot of the counters for a single Kind.
//
// Field names and JSON tags follow the W3C RTCStats dictionaries so that
// browser reports and pion reports decode into the same struct. Anything the
// reporter did not include stays 0.
type Sample struct {
	Kind Kind `json:"kind"`

	// Timestamp is wall-clock milliseconds.
	Timestamp float64 `json:"timestamp"`

	// Cumulative counters
	BytesReceived            float64 `json:"bytesReceived"`
	PacketsReceived          float64 `json:"packetsReceived"`
	PacketsLost              float64 `json:"packetsLost"`
	FramesDecoded            float64 `json:"framesDecoded"`
	KeyFramesDecoded         float64 `json:"keyFramesDecoded"`
	FramesDropped            float64 `json:"framesDropped"`
	FreezeCount              float64 `json:"freezeCount"`
	TotalFreezesDuration     float64 `json:"totalFreezesDuration"`
	JitterBufferDelay        float64 `json:"jitterBufferDelay"`
	JitterBufferEmittedCount float64 `json:"jitterBufferEmittedCount"`
	PLICount                 float64 `json:"pliCount"`
	NACKCount                float64 `json:"nackCount"`
	FIRCount                 float64 `json:"firCount"`

	// Instantaneous values
	FramesPerSecond      float64 `json:"framesPerSecond"`
	FrameWidth           float64 `json:"frameWidth"`
	FrameHeight          float64 `json:"frameHeight"`
	CurrentRoundTripTime float64 `json:"currentRoundTripTime"`
}

// Snapshot maps each Kind to at most one Sample.
type Snapshot map[Kind]Sample

// Counter selects one cumulative counter from a sample.
type Counter func(*Sample) float64

// Counter accessors used by the rate rule.
var (
	BytesReceived            Counter = func(s *Sample) float64 { return s.BytesReceived }
	PacketsReceived          Counter = func(s *Sample) float64 { return s.PacketsReceived }
	PacketsLost              Counter = func(s *Sample) float64 { return s.PacketsLost }
	JitterBufferDelay        Counter = func(s *Sample) float64 { return s.JitterBufferDelay }
	JitterBufferEmittedCount Counter = func(s *Sample) float64 { return s.JitterBufferEmittedCount }
)
