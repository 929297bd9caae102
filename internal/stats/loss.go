package stats

// LossTracker computes packet loss across the audio and video channels.
//
// It only reads the channels. The elapsed-time guard uses whichever of the two
// channels was updated last, even if the other one did not report this poll,
// so a stale dt can be used when only one kind updates.
type LossTracker struct {
	audio *Channel
	video *Channel
}

// NewLossTracker creates a tracker over the given channels.
func NewLossTracker(audio, video *Channel) *LossTracker {
	return &LossTracker{audio: audio, video: video}
}

// Compute returns 100 * Δlost / Δreceived over both channels.
// last is the channel updated most recently (nil if neither has reported).
// A channel holding a single sample contributes its absolute counters.
func (l *LossTracker) Compute(last *Channel) float64 {
	if last == nil {
		return 0
	}
	if dt, known := last.DeltaSeconds(); known && dt == 0 {
		return 0
	}

	var lost, received float64
	for _, c := range []*Channel{l.audio, l.video} {
		if c == nil || c.current == nil {
			continue
		}
		if c.previous == nil {
			lost += c.current.PacketsLost
			received += c.current.PacketsReceived
			continue
		}
		lost += c.current.PacketsLost - c.previous.PacketsLost
		received += c.current.PacketsReceived - c.previous.PacketsReceived
	}

	if received == 0 {
		return 0
	}
	return 100 * lost / received
}
