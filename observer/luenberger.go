package observer

import "gofoc/foc"

// LuenbergerParams configures a Luenberger observer. L1 feeds the current
// error back into the current estimate and must be negative; L2 feeds it into
// the back-EMF estimate and must be positive.
type LuenbergerParams struct {
	Motor MotorParams

	L1           float32
	L2           float32
	PLLBandwidth float32 // Hz
	KSpeedLPF    float32
}

// Luenberger estimates the back-EMF with fixed linear feedback gains and a
// back-EMF model that rotates at the previously estimated speed.
type Luenberger struct {
	p LuenbergerParams

	iEst foc.AlphaBeta
	emf  foc.AlphaBeta

	pll         *PLL
	speedRaw    float32
	speedFilter foc.LowPass
}

// NewLuenberger returns a Luenberger observer.
func NewLuenberger(p LuenbergerParams) (*Luenberger, error) {
	if !p.Motor.valid() {
		return nil, ErrInvalidParams
	}
	maxOmega := foc.RPMToElectrical(MaxTrackedRPM, p.Motor.PolePairs)
	l := &Luenberger{
		p:   p,
		pll: NewPLL(p.PLLBandwidth, p.Motor.Ts, maxOmega),
	}
	l.speedFilter.Alpha = p.KSpeedLPF
	return l, nil
}

// Estimate advances the observer by one period.
func (l *Luenberger) Estimate(i, u foc.AlphaBeta) {
	m := l.p.Motor
	kTL := m.Ts / m.Ls
	kTRL := m.Ts * m.Rs / m.Ls
	we := l.pll.Omega()

	errAlpha := l.iEst.Alpha - i.Alpha
	errBeta := l.iEst.Beta - i.Beta
	l1 := l.p.L1 * m.Ts
	l2 := l.p.L2 * m.Ts

	iNext := foc.AlphaBeta{
		Alpha: l.iEst.Alpha - kTRL*l.iEst.Alpha - kTL*l.emf.Alpha + kTL*u.Alpha + l1*errAlpha,
		Beta:  l.iEst.Beta - kTRL*l.iEst.Beta - kTL*l.emf.Beta + kTL*u.Beta + l1*errBeta,
	}
	emfNext := foc.AlphaBeta{
		Alpha: l.emf.Alpha - we*m.Ts*l.emf.Beta + l2*errAlpha,
		Beta:  l.emf.Beta + we*m.Ts*l.emf.Alpha + l2*errBeta,
	}
	l.iEst = iNext
	l.emf = emfNext

	l.pll.Update(l.emf)
	l.speedRaw = foc.ElectricalToRPM(l.pll.Omega(), m.PolePairs)
	l.speedFilter.Update(l.speedRaw)
}

// Angle returns the PLL angle. No lag compensation is applied.
func (l *Luenberger) Angle() float32 { return l.pll.Angle() }

// SpeedRPM returns the filtered speed estimate.
func (l *Luenberger) SpeedRPM() float32 { return l.speedFilter.Value() }

// RawSpeedRPM returns the unfiltered PLL speed.
func (l *Luenberger) RawSpeedRPM() float32 { return l.speedRaw }

// PLLGains returns the gains of the angle tracking loop.
func (l *Luenberger) PLLGains() (kp, ki float32) { return l.pll.Gains() }

// EMF returns the back-EMF estimate.
func (l *Luenberger) EMF() foc.AlphaBeta { return l.emf }

// Reset clears all observer state.
func (l *Luenberger) Reset() {
	l.iEst = foc.AlphaBeta{}
	l.emf = foc.AlphaBeta{}
	l.pll.Reset()
	l.speedRaw = 0
	l.speedFilter.Reset(0)
}

// Seed aligns the PLL with a known angle and speed.
func (l *Luenberger) Seed(theta, rpm float32) {
	l.pll.Seed(theta, foc.RPMToElectrical(rpm, l.p.Motor.PolePairs))
	l.speedRaw = rpm
	l.speedFilter.Reset(rpm)
}
