package core

import "gofoc/foc"

// Snapshot is a display copy of the controller state. It is read without the
// guard, so fields may come from different cycles; never use it for control.
type Snapshot struct {
	Mode        Mode
	Fault       FaultCode
	AngleSource AngleSourceKind
	Aligned     bool

	TargetSpeed float32 // rpm
	RampSpeed   float32 // rpm
	Speed       float32 // rpm, loop feedback
	SpeedFilt   float32 // rpm, display filter
	TargetID    float32
	TargetIQ    float32

	Current     foc.DQ // amperes, raw
	CurrentFilt foc.DQ // amperes, display filter
	CurrentRef  foc.DQ // amperes, active loop references
	Voltage     foc.DQ // volts
	Angle       float32
	Offset      float32
	BusVoltage  float32
	Duty        foc.Duty

	SensorAngle   float32 // electrical, corrected; 0 without a sensor
	ObserverAngle float32
	ObserverSpeed float32

	Cycles   uint32
	Overruns uint32
}

// Snapshot returns the present state for telemetry.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Mode:        c.mode,
		Fault:       c.fault,
		AngleSource: c.source,
		Aligned:     c.aligned,
		TargetSpeed: c.targetSpeed,
		RampSpeed:   c.ramp.Value(),
		Speed:       c.speed,
		SpeedFilt:   c.speedFilter.Value(),
		TargetID:    c.targetID,
		TargetIQ:    c.targetIQ,
		Current:     c.idq,
		CurrentFilt: foc.DQ{D: c.dFilter.Value(), Q: c.qFilter.Value()},
		CurrentRef:  foc.DQ{D: c.idRef, Q: c.iqRef},
		Voltage:     c.vdq,
		Angle:       c.angle,
		Offset:      c.offset,
		BusVoltage:  c.vbus,
		Duty:        c.duty,
		Cycles:      c.cycles,
		Overruns:    c.overruns.Load(),
	}
	if c.hw.Sensor != nil {
		s.SensorAngle = c.sensorAngle()
	}
	if obs := c.hw.Observer; obs != nil {
		s.ObserverAngle = obs.Angle()
		s.ObserverSpeed = obs.SpeedRPM()
	}
	return s
}
