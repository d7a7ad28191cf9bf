package config

import (
	"strings"

	"gofoc/observer"
)

// MotorParams returns the observer view of the motor.
func (c *Config) MotorParams() observer.MotorParams {
	return observer.MotorParams{
		Rs:        float32(c.Motor.Rs),
		Ls:        float32(c.Motor.Ls),
		PolePairs: c.Motor.PolePairs,
		Ts:        c.Ts(),
	}
}

// NewObserver builds the configured estimator. It returns nil for type
// "none".
func (c *Config) NewObserver() (observer.Estimator, error) {
	o := c.Observer
	switch strings.ToLower(o.Type) {
	case "smo":
		return observer.NewSMO(observer.SMOParams{
			Motor:        c.MotorParams(),
			KSlide:       float32(o.KSlide),
			KLPF:         float32(o.KLPF),
			Boundary:     float32(o.Boundary),
			PLLBandwidth: float32(o.PLLBandwidth),
			KSpeedLPF:    float32(o.SpeedFilter),
		})
	case "luenberger":
		return observer.NewLuenberger(observer.LuenbergerParams{
			Motor:        c.MotorParams(),
			L1:           float32(o.L1),
			L2:           float32(o.L2),
			PLLBandwidth: float32(o.LuenbergerPLLBandwidth),
			KSpeedLPF:    float32(o.SpeedFilter),
		})
	}
	return nil, nil
}
