package encoder

import "gofoc/foc"

// SpeedEstimator turns successive raw readings into shaft speed. Deltas are
// unwrapped at half a revolution, summed over Window updates, and converted
// to rpm once per window.
type SpeedEstimator struct {
	window int
	period float32 // seconds covered by one window

	last   uint16
	sum    int32
	count  int
	primed bool

	raw    float32
	filter foc.LowPass
}

// NewSpeedEstimator returns an estimator updated every ts seconds that
// evaluates speed every window updates and low-passes it with alpha.
func NewSpeedEstimator(window int, ts, alpha float32) *SpeedEstimator {
	if window < 1 {
		window = 1
	}
	s := &SpeedEstimator{window: window, period: float32(window) * ts}
	s.filter.Alpha = foc.Clamp(alpha, 0, 1)
	return s
}

// Update consumes one raw reading in counts.
func (s *SpeedEstimator) Update(raw uint16) {
	raw &= Counts - 1
	if !s.primed {
		s.last = raw
		s.primed = true
		return
	}

	delta := int32(raw) - int32(s.last)
	if delta > Counts/2 {
		delta -= Counts
	} else if delta < -Counts/2 {
		delta += Counts
	}
	s.last = raw
	s.sum += delta
	s.count++

	if s.count >= s.window {
		s.raw = float32(s.sum) / Counts * 60 / s.period
		s.filter.Update(s.raw)
		s.sum = 0
		s.count = 0
	}
}

// RawSpeedRPM returns the speed of the last complete window.
func (s *SpeedEstimator) RawSpeedRPM() float32 { return s.raw }

// SpeedRPM returns the filtered speed.
func (s *SpeedEstimator) SpeedRPM() float32 { return s.filter.Value() }

// Reset forgets the previous reading and the speed.
func (s *SpeedEstimator) Reset() {
	s.primed = false
	s.sum = 0
	s.count = 0
	s.raw = 0
	s.filter.Reset(0)
}
