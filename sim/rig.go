package sim

import (
	"gofoc/config"
	"gofoc/core"
	"gofoc/encoder"
)

// ParamsFromConfig builds plant parameters matching a configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	m := cfg.Motor
	return Params{
		PolePairs:      m.PolePairs,
		Rs:             float32(m.Rs),
		Ls:             float32(m.Ls),
		FluxLinkage:    float32(m.FluxLinkage),
		Inertia:        float32(m.Inertia),
		Damping:        float32(m.Damping),
		BusVoltage:     float32(cfg.Control.BusVoltage),
		SubSteps:       10,
		SensorReversed: cfg.Sensor.Reversed,
	}
}

// Rig wires a Motor, an encoder model and a Controller together the way the
// firmware wires the real peripherals.
type Rig struct {
	Motor      *Motor
	Sensor     *encoder.Sensor
	Controller *core.Controller

	ts float32
}

// NewRig builds the controller described by cfg around a simulated motor.
func NewRig(cfg *config.Config, m *Motor) (*Rig, error) {
	settings := cfg.ControllerSettings()
	sensor := encoder.NewSensor(m, settings.SpeedDivider, settings.Ts, float32(cfg.Sensor.SpeedFilter))
	est, err := cfg.NewObserver()
	if err != nil {
		return nil, err
	}
	hw := core.Hardware{
		PWM:      m,
		Sensor:   sensor,
		Currents: m,
		Sleep:    m.Advance,
	}
	if est != nil {
		hw.Observer = est
	}
	c, err := core.NewController(settings, hw)
	if err != nil {
		return nil, err
	}
	return &Rig{Motor: m, Sensor: sensor, Controller: c, ts: settings.Ts}, nil
}

// Run advances the plant by one period with the last duty, then runs one
// control cycle on the resulting sample, n times. each, when not nil, is
// called after every cycle with the cycle index.
func (r *Rig) Run(n int, each func(i int)) {
	for i := 0; i < n; i++ {
		r.Motor.Step(r.Motor.Duty(), r.ts)
		r.Controller.OnCurrentSample(r.Motor.ReadCurrents())
		if each != nil {
			each(i)
		}
	}
}

// Seconds converts a duration in seconds to control cycles.
func (r *Rig) Seconds(s float32) int {
	return int(s/r.ts + 0.5)
}
