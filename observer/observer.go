// Package observer provides sensorless rotor-position estimators. Each one
// reconstructs the back-EMF vector from measured current and applied voltage
// and tracks its phase with a PLL to produce an electrical angle and speed.
package observer

import "gofoc/foc"

// Estimator is a rotor-position observer stepped once per control cycle.
type Estimator interface {
	// Estimate advances the observer by one sample period using the measured
	// stationary-frame current and the voltage applied during that period.
	Estimate(i, u foc.AlphaBeta)

	// Angle returns the estimated electrical angle in [0, 2π).
	Angle() float32

	// SpeedRPM returns the low-pass filtered mechanical speed estimate.
	SpeedRPM() float32

	// RawSpeedRPM returns the unfiltered PLL speed in mechanical RPM.
	RawSpeedRPM() float32

	// EMF returns the back-EMF estimate.
	EMF() foc.AlphaBeta

	// Reset clears all estimator state.
	Reset()
}

// MotorParams are the machine constants every observer needs.
type MotorParams struct {
	Rs        float32 // stator resistance, ohm
	Ls        float32 // stator inductance, henry
	PolePairs int
	Ts        float32 // sample period, seconds
}

func (m MotorParams) valid() bool {
	return m.Rs >= 0 && m.Ls > 0 && m.PolePairs > 0 && m.Ts > 0
}

// MaxTrackedRPM bounds the PLL output.
const MaxTrackedRPM = 10000

// Seeder is implemented by observers that can be placed at a known angle and
// speed, used when control hands over from a forced startup angle.
type Seeder interface {
	Seed(theta, rpm float32)
}

var (
	_ Estimator = (*SMO)(nil)
	_ Estimator = (*Luenberger)(nil)
	_ Seeder    = (*SMO)(nil)
	_ Seeder    = (*Luenberger)(nil)
)
