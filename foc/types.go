// Package foc implements the field-oriented control math: frame transforms,
// space-vector modulation, the anti-windup PID used by every loop, and the
// small filters and ramps the control core is built from.
//
// Everything here is allocation-free and safe to call from interrupt context.
package foc

// ABC is a three-phase quantity (phase currents in amperes or phase voltages).
// The sum is expected to be near zero but is not enforced.
type ABC struct {
	A, B, C float32
}

// AlphaBeta is a vector in the stationary two-axis frame.
type AlphaBeta struct {
	Alpha, Beta float32
}

// DQ is a vector in the rotor-synchronous frame at the present electrical angle.
type DQ struct {
	D, Q float32
}

// Duty holds the three normalized PWM duty cycles for one control period.
// See SVPWM for the range and centering convention.
type Duty struct {
	A, B, C float32
}

// ZeroDuty is the zero differential voltage output: all phases at 50%.
// Faults and stops always write this value, never 0%.
var ZeroDuty = Duty{A: 0.5, B: 0.5, C: 0.5}

// Clamp returns d with each component limited to [0, 1].
func (d Duty) Clamp() Duty {
	return Duty{A: clamp01(d.A), B: clamp01(d.B), C: clamp01(d.C)}
}

// Magnitude returns the length of the dq vector.
func (v DQ) Magnitude() float32 {
	return sqrt32(v.D*v.D + v.Q*v.Q)
}

// Magnitude returns the length of the αβ vector.
func (v AlphaBeta) Magnitude() float32 {
	return sqrt32(v.Alpha*v.Alpha + v.Beta*v.Beta)
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Abs returns |x|.
func Abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
