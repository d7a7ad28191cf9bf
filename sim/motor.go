// Package sim models a surface-mount PMSM behind an ideal three-phase
// inverter. The model implements the controller's hardware interfaces so the
// whole control stack can run closed loop on a host.
package sim

import (
	"math"
	"time"

	"gofoc/core"
	"gofoc/encoder"
	"gofoc/foc"
)

// Params describes the simulated machine and its instrumentation.
type Params struct {
	PolePairs   int
	Rs          float32 // ohm
	Ls          float32 // henry
	FluxLinkage float32 // Wb
	Inertia     float32 // kg·m²
	Damping     float32 // N·m·s
	BusVoltage  float32
	SubSteps    int // integration steps per Step call

	SensorOffset   float32 // mechanical radians between sensor zero and rotor zero
	SensorReversed bool
	CurrentOffset  foc.ABC // ADC zero error, amperes
}

// Motor is the plant state. It is not safe for concurrent use.
type Motor struct {
	p Params

	duty      foc.Duty
	id, iq    float32
	omega     float32 // mechanical rad/s
	theta     float32 // mechanical rad, unwrapped
	load      float32 // N·m
	installed foc.ABC
	sensorErr error
}

var (
	_ core.PWMSink          = (*Motor)(nil)
	_ core.CurrentSource    = (*Motor)(nil)
	_ core.CurrentOffsetter = (*Motor)(nil)
	_ encoder.Reader        = (*Motor)(nil)
)

// NewMotor returns a motor at rest with the rotor d-axis at theta.
func NewMotor(p Params, theta float32) *Motor {
	if p.SubSteps < 1 {
		p.SubSteps = 10
	}
	return &Motor{p: p, duty: foc.ZeroDuty, theta: theta}
}

// SetDuty latches the inverter duty cycles applied by subsequent steps.
func (m *Motor) SetDuty(d foc.Duty) { m.duty = d.Clamp() }

// Duty returns the latched duty cycles.
func (m *Motor) Duty() foc.Duty { return m.duty }

// SetLoadTorque sets a constant opposing torque in N·m.
func (m *Motor) SetLoadTorque(t float32) { m.load = t }

// SetSensorError makes ReadAngle fail with err until cleared with nil.
func (m *Motor) SetSensorError(err error) { m.sensorErr = err }

// Step applies d for dt seconds.
func (m *Motor) Step(d foc.Duty, dt float32) {
	m.SetDuty(d)
	m.integrate(dt)
}

// Advance integrates for a wall-clock duration with the latched duty. It
// matches the Sleep hook the controller uses during alignment.
func (m *Motor) Advance(d time.Duration) {
	const chunk = 1e-4
	remaining := float32(d.Seconds())
	for remaining > 0 {
		dt := float32(chunk)
		if remaining < dt {
			dt = remaining
		}
		m.integrate(dt)
		remaining -= dt
	}
}

func (m *Motor) electrical() float32 {
	return foc.WrapAngle(m.theta * float32(m.p.PolePairs))
}

// phaseVoltages returns the inverter line-to-neutral voltages.
func (m *Motor) phaseVoltages() foc.ABC {
	d := m.duty
	mean := (d.A + d.B + d.C) / 3
	v := m.p.BusVoltage
	return foc.ABC{A: v * (d.A - mean), B: v * (d.B - mean), C: v * (d.C - mean)}
}

func (m *Motor) integrate(dt float32) {
	p := m.p
	h := dt / float32(p.SubSteps)
	pp := float32(p.PolePairs)
	vab := foc.Clark(m.phaseVoltages())

	for i := 0; i < p.SubSteps; i++ {
		vdq := foc.Park(vab, m.electrical())
		we := m.omega * pp

		did := (vdq.D - p.Rs*m.id + we*p.Ls*m.iq) / p.Ls
		diq := (vdq.Q - p.Rs*m.iq - we*p.Ls*m.id - we*p.FluxLinkage) / p.Ls
		m.id += did * h
		m.iq += diq * h

		torque := 1.5 * pp * p.FluxLinkage * m.iq
		friction := p.Damping*m.omega + coulomb(m.load, m.omega)
		m.omega += (torque - friction) / p.Inertia * h
		m.theta += m.omega * h
	}
	m.theta = foc.WrapAngle(m.theta)
}

// coulomb opposes motion with magnitude load.
func coulomb(load, omega float32) float32 {
	switch {
	case omega > 0:
		return load
	case omega < 0:
		return -load
	}
	return 0
}

// Currents returns the true phase currents.
func (m *Motor) Currents() foc.ABC {
	return foc.InverseClark(foc.InversePark(foc.DQ{D: m.id, Q: m.iq}, m.electrical()))
}

// ReadCurrents returns what the ADC reports: true current plus the zero
// error, minus the installed offsets.
func (m *Motor) ReadCurrents() core.CurrentSample {
	i := m.Currents()
	off := m.p.CurrentOffset
	return core.CurrentSample{
		Phase: foc.ABC{
			A: i.A + off.A - m.installed.A,
			B: i.B + off.B - m.installed.B,
			C: i.C + off.C - m.installed.C,
		},
		BusVoltage: m.p.BusVoltage,
	}
}

// SetCurrentOffsets installs the calibrated ADC zero.
func (m *Motor) SetCurrentOffsets(o foc.ABC) { m.installed = o }

// ReadAngle returns the shaft position as 14-bit encoder counts.
func (m *Motor) ReadAngle() (uint16, error) {
	if m.sensorErr != nil {
		return 0, m.sensorErr
	}
	mech := m.theta
	if m.p.SensorReversed {
		mech = -mech
	}
	mech += m.p.SensorOffset
	turns := float64(mech) / (2 * math.Pi)
	frac := turns - math.Floor(turns)
	return uint16(frac*encoder.Counts) & (encoder.Counts - 1), nil
}

// SpeedRPM returns the true shaft speed.
func (m *Motor) SpeedRPM() float32 {
	return m.omega * 60 / foc.TwoPi
}

// ElectricalAngle returns the true rotor electrical angle.
func (m *Motor) ElectricalAngle() float32 { return m.electrical() }

// CurrentDQ returns the true rotor-frame current.
func (m *Motor) CurrentDQ() foc.DQ { return foc.DQ{D: m.id, Q: m.iq} }
