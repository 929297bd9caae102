package stats

// DeltaSeconds returns the elapsed time between two samples in seconds.
// known is false when there is no previous sample.
func DeltaSeconds(prev, cur *Sample) (dt float64, known bool) {
	if prev == nil || cur == nil {
		return 0, false
	}
	return (cur.Timestamp - prev.Timestamp) / 1000, true
}

// Rate applies the cumulative-counter rule to one counter:
//
//   - no previous sample: the absolute value times scale, as if it had
//     accumulated over one second
//   - zero elapsed time:  0
//   - otherwise:          (C1 - C0) * scale / dt
//
// A counter that went backwards yields a negative rate. Resets are not
// detected.
func Rate(prev, cur *Sample, counter Counter, scale float64) float64 {
	if cur == nil {
		return 0
	}
	dt, known := DeltaSeconds(prev, cur)
	if !known {
		return counter(cur) * scale
	}
	if dt == 0 {
		return 0
	}
	return (counter(cur) - counter(prev)) * scale / dt
}

// bitsPerKilobit converts a byte delta into kilobits.
const bitsPerKilobit = 8.0 / 1000

// averageJitterBufferDelay returns the mean jitter buffer delay in ms.
//
// With two samples it is Δdelay(ms) / ΔemittedCount / dt; with one it is the
// cumulative ratio. Any zero denominator yields 0.
func averageJitterBufferDelay(prev, cur *Sample) float64 {
	if cur == nil {
		return 0
	}
	dt, known := DeltaSeconds(prev, cur)
	if !known {
		if cur.JitterBufferEmittedCount == 0 {
			return 0
		}
		return cur.JitterBufferDelay * 1000 / cur.JitterBufferEmittedCount
	}

	emitted := cur.JitterBufferEmittedCount - prev.JitterBufferEmittedCount
	if dt == 0 || emitted == 0 {
		return 0
	}
	delayMs := (cur.JitterBufferDelay - prev.JitterBufferDelay) * 1000
	return delayMs / emitted / dt
}
