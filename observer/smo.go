package observer

import (
	"errors"

	"gofoc/foc"
)

var ErrInvalidParams = errors.New("observer: invalid motor parameters")

// SMOParams configures a sliding-mode observer.
type SMOParams struct {
	Motor MotorParams

	KSlide       float32 // switching gain, volts
	KLPF         float32 // back-EMF low-pass coefficient (0, 1]
	Boundary     float32 // boundary layer half-width, amperes
	PLLBandwidth float32 // Hz
	KSpeedLPF    float32 // speed low-pass coefficient (0, 1]
}

// SMO is a sliding-mode back-EMF observer with PLL angle extraction and
// compensation of the back-EMF filter phase lag.
type SMO struct {
	p SMOParams
	f float32 // 1 - Rs·Ts/Ls
	g float32 // Ts/Ls

	iEst foc.AlphaBeta
	emf  foc.AlphaBeta
	z    foc.AlphaBeta

	pll         *PLL
	speedRaw    float32
	speedFilter foc.LowPass
	angle       float32
}

// NewSMO returns a sliding-mode observer.
func NewSMO(p SMOParams) (*SMO, error) {
	if !p.Motor.valid() || p.KLPF <= 0 || p.KLPF > 1 || p.Boundary <= 0 {
		return nil, ErrInvalidParams
	}
	m := p.Motor
	maxOmega := foc.RPMToElectrical(MaxTrackedRPM, m.PolePairs)
	s := &SMO{
		p:   p,
		f:   1 - m.Rs*m.Ts/m.Ls,
		g:   m.Ts / m.Ls,
		pll: NewPLL(p.PLLBandwidth, m.Ts, maxOmega),
	}
	s.speedFilter.Alpha = p.KSpeedLPF
	return s, nil
}

// saturate is linear inside ±boundary and clamps to ±1 outside it.
func saturate(x, boundary float32) float32 {
	if x > boundary {
		return 1
	}
	if x < -boundary {
		return -1
	}
	return x / boundary
}

// Estimate advances the observer by one period.
func (s *SMO) Estimate(i, u foc.AlphaBeta) {
	s.iEst.Alpha = s.f*s.iEst.Alpha + s.g*(u.Alpha-s.emf.Alpha-s.z.Alpha)
	s.iEst.Beta = s.f*s.iEst.Beta + s.g*(u.Beta-s.emf.Beta-s.z.Beta)

	errAlpha := s.iEst.Alpha - i.Alpha
	errBeta := s.iEst.Beta - i.Beta

	s.z.Alpha = s.p.KSlide * saturate(errAlpha, s.p.Boundary)
	s.z.Beta = s.p.KSlide * saturate(errBeta, s.p.Boundary)

	k := s.p.KLPF
	s.emf.Alpha = (1-k)*s.emf.Alpha + k*s.z.Alpha
	s.emf.Beta = (1-k)*s.emf.Beta + k*s.z.Beta

	theta := s.pll.Update(s.emf)
	poles := s.p.Motor.PolePairs
	s.speedRaw = foc.ElectricalToRPM(s.pll.Omega(), poles)
	filtered := s.speedFilter.Update(s.speedRaw)

	omega := foc.RPMToElectrical(filtered, poles)
	lag := foc.Atan(omega * s.p.Motor.Ts * (1 - k) / k)
	s.angle = foc.WrapAngle(theta + lag)
}

// Angle returns the lag-compensated electrical angle.
func (s *SMO) Angle() float32 { return s.angle }

// UncompensatedAngle returns the raw PLL angle.
func (s *SMO) UncompensatedAngle() float32 { return s.pll.Angle() }

// SpeedRPM returns the filtered speed estimate.
func (s *SMO) SpeedRPM() float32 { return s.speedFilter.Value() }

// RawSpeedRPM returns the unfiltered PLL speed.
func (s *SMO) RawSpeedRPM() float32 { return s.speedRaw }

// EMF returns the filtered back-EMF estimate.
func (s *SMO) EMF() foc.AlphaBeta { return s.emf }

// Reset clears all observer state.
func (s *SMO) Reset() {
	s.iEst = foc.AlphaBeta{}
	s.emf = foc.AlphaBeta{}
	s.z = foc.AlphaBeta{}
	s.pll.Reset()
	s.speedRaw = 0
	s.speedFilter.Reset(0)
	s.angle = 0
}

// Seed aligns the PLL with a known angle and speed.
func (s *SMO) Seed(theta, rpm float32) {
	omega := foc.RPMToElectrical(rpm, s.p.Motor.PolePairs)
	s.pll.Seed(theta, omega)
	s.speedRaw = rpm
	s.speedFilter.Reset(rpm)
	s.angle = foc.WrapAngle(theta)
}
