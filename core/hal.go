package core

import (
	"time"

	"gofoc/foc"
	"gofoc/observer"
)

// CurrentSample is one PWM-synchronized conversion of the phase currents.
// BusVoltage is zero when the board does not measure it.
type CurrentSample struct {
	Phase      foc.ABC
	BusVoltage float32
}

// CurrentSource performs a blocking conversion outside the control cycle.
// Only offset calibration uses it; during operation samples arrive through
// CurrentSampleConsumer.
type CurrentSource interface {
	ReadCurrents() CurrentSample
}

// CurrentOffsetter is implemented by current sources that subtract a
// zero-current offset from every conversion.
type CurrentOffsetter interface {
	SetCurrentOffsets(offsets foc.ABC)
}

// CurrentSampleConsumer is invoked by the ADC driver once per PWM period
// with a fresh sample. The controller implements it.
type CurrentSampleConsumer interface {
	OnCurrentSample(s CurrentSample)
}

// AngleSource is an absolute rotor position sensor. Update samples the
// sensor once; MechanicalAngle returns the last good reading in radians.
// A failed Update leaves the previous reading in place.
type AngleSource interface {
	Update() error
	MechanicalAngle() float32
}

// SpeedSource is derived from an AngleSource and is refreshed by its Update.
type SpeedSource interface {
	SpeedRPM() float32
	RawSpeedRPM() float32
}

// RotorSensor is a position sensor that also estimates speed.
type RotorSensor interface {
	AngleSource
	SpeedSource
}

// PWMSink applies three duty cycles. The convention is the one documented on
// foc.SVPWM: [0, 1], center aligned, 0.5 for zero differential voltage.
type PWMSink interface {
	SetDuty(d foc.Duty)
}

// Hardware collects the collaborators a Controller drives. Sensor and
// Observer are both optional but at least one must be present for closed
// loop operation. Sleep is used by alignment only.
type Hardware struct {
	PWM      PWMSink
	Sensor   RotorSensor
	Currents CurrentSource
	Observer observer.Estimator
	Sleep    func(time.Duration)
}
