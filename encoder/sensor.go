package encoder

import (
	"gofoc/core"
	"gofoc/foc"
)

// Reader is a source of raw angle counts. *AS5047 implements it.
type Reader interface {
	ReadAngle() (uint16, error)
}

// Sensor adapts a Reader and a SpeedEstimator to core.RotorSensor. It is
// updated from the control cycle once per period.
type Sensor struct {
	reader Reader
	speed  *SpeedEstimator
	raw    uint16
}

var _ core.RotorSensor = (*Sensor)(nil)

// NewSensor returns a rotor sensor reading r every control period ts. The
// speed window and filter follow the controller's speed loop.
func NewSensor(r Reader, window int, ts, alpha float32) *Sensor {
	return &Sensor{reader: r, speed: NewSpeedEstimator(window, ts, alpha)}
}

// Update reads the sensor once. On error the previous reading and speed
// stay in place.
func (s *Sensor) Update() error {
	raw, err := s.reader.ReadAngle()
	if err != nil {
		return err
	}
	s.raw = raw
	s.speed.Update(raw)
	return nil
}

// Raw returns the last good reading in counts.
func (s *Sensor) Raw() uint16 { return s.raw }

// MechanicalAngle returns the last good reading in radians.
func (s *Sensor) MechanicalAngle() float32 {
	return float32(s.raw) * (foc.TwoPi / Counts)
}

func (s *Sensor) SpeedRPM() float32    { return s.speed.SpeedRPM() }
func (s *Sensor) RawSpeedRPM() float32 { return s.speed.RawSpeedRPM() }
