package stats

import "strconv"

// Metric names one derived series. The string doubles as the export column
// header and the Prometheus gauge suffix.
type Metric string

const (
	VideoBitrate        Metric = "video_bitrate_kbps"
	AudioBitrate        Metric = "audio_bitrate_kbps"
	PacketsReceivedRate Metric = "packets_received_per_sec"
	PacketLoss          Metric = "packet_loss_pct"
	RoundTripTime       Metric = "rtt_ms"
	JitterBufferDelayMs Metric = "jitter_buffer_delay_ms"
	FrameRate           Metric = "frames_per_sec"
	KeyFrames           Metric = "keyframes_decoded"
	PLICount            Metric = "pli_count"
	NACKCount           Metric = "nack_count"
	FreezeCount         Metric = "freeze_count"
	FreezeDuration      Metric = "freeze_duration_sec"
	FrameWidth          Metric = "frame_width"
	FrameHeight         Metric = "frame_height"
)

// Metrics is the fixed column order used by recordings and exports.
var Metrics = []Metric{
	VideoBitrate,
	AudioBitrate,
	PacketsReceivedRate,
	PacketLoss,
	RoundTripTime,
	JitterBufferDelayMs,
	FrameRate,
	KeyFrames,
	PLICount,
	NACKCount,
	FreezeCount,
	FreezeDuration,
	FrameWidth,
	FrameHeight,
}

// precision is the number of decimals used when rendering a metric.
// Percentages, milliseconds and seconds get two; counts and kbps get none.
var precision = map[Metric]int{
	PacketLoss:          2,
	RoundTripTime:       2,
	JitterBufferDelayMs: 2,
	FrameRate:           2,
	FreezeDuration:      2,
}

// Precision returns the decimal places used to render m.
func (m Metric) Precision() int {
	return precision[m]
}

// Format renders v with the metric's fixed precision.
func (m Metric) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', m.Precision(), 64)
}

// String returns the metric name.
func (m Metric) String() string {
	return string(m)
}

// Known reports whether m is part of the catalogue.
func (m Metric) Known() bool {
	for _, k := range Metrics {
		if k == m {
			return true
		}
	}
	return false
}
