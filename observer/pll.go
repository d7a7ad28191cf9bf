package observer

import "gofoc/foc"

// PLL tracks the phase of a back-EMF vector. Its loop filter is a foc.PID
// with Kd = 0 whose output is the electrical speed in rad/s.
type PLL struct {
	filter foc.PID
	ts     float32
	theta  float32
	omega  float32
}

// NewPLL returns a PLL designed for bandwidth fc (Hz) with unity damping:
// kp = 2ζωn, ki = ωn²·Ts. The speed output is limited to ±maxOmega rad/s.
func NewPLL(fc, ts, maxOmega float32) *PLL {
	const zeta = 1.0
	wn := foc.TwoPi * fc
	p := &PLL{ts: ts}
	p.filter.Init(2*zeta*wn, wn*wn*ts, 0, -maxOmega, maxOmega)
	return p
}

// Update advances the loop with the latest back-EMF vector and returns the
// tracked angle.
func (p *PLL) Update(emf foc.AlphaBeta) float32 {
	s, c := foc.SinCos(p.theta)
	phaseErr := -(emf.Alpha*c + emf.Beta*s)
	p.omega = p.filter.Calculate(phaseErr, 0)
	p.theta = foc.WrapAngle(p.theta + p.omega*p.ts)
	return p.theta
}

// Angle returns the tracked electrical angle.
func (p *PLL) Angle() float32 { return p.theta }

// Omega returns the tracked electrical speed in rad/s.
func (p *PLL) Omega() float32 { return p.omega }

// Gains returns the loop filter gains.
func (p *PLL) Gains() (kp, ki float32) { return p.filter.Kp, p.filter.Ki }

// Reset clears the loop filter and the tracked angle.
func (p *PLL) Reset() {
	p.filter.Reset()
	p.theta = 0
	p.omega = 0
}

// Seed places the loop at a known angle and speed, used when an observer
// takes over from a forced startup angle.
func (p *PLL) Seed(theta, omega float32) {
	p.theta = foc.WrapAngle(theta)
	p.omega = omega
	p.filter.Preload(omega)
}
