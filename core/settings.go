package core

import (
	"errors"
	"time"
)

// PIDGains configures one PI(D) loop with a symmetric output clamp.
type PIDGains struct {
	Kp, Ki, Kd float32
	Limit      float32
}

// OpenLoopSettings configures forced-angle startup. A positive Current
// selects I/F (q current regulated by the current loops at the forced angle);
// otherwise the fixed q-axis Voltage is applied (V/F).
type OpenLoopSettings struct {
	SpeedRPM float32
	AccelRPM float32 // rpm per second, 0 starts directly at SpeedRPM
	Voltage  float32
	Current  float32
}

// AlignmentSettings configures the d-axis lock used to find the sensor offset.
type AlignmentSettings struct {
	Voltage   float32
	Steps     int
	StepDelay time.Duration
	Settle    time.Duration
	Samples   int

	DetectPolarity bool
	PolarityStep   float32 // electrical radians
	MinMovement    float32 // electrical radians
}

// ProtectionSettings holds the trip thresholds. Ratios apply to the rated
// values; bus checks only run when the sample carries a bus voltage.
type ProtectionSettings struct {
	Enabled           bool
	RatedCurrent      float32
	RatedVoltage      float32
	OverCurrentRatio  float32
	OverVoltageRatio  float32
	UnderVoltageRatio float32
	StaleAngleCycles  int
}

// HandoffSettings controls the automatic switch from forced-angle startup to
// observer-based speed control.
type HandoffSettings struct {
	Auto      bool
	WindowRPM float32
	Cycles    int
}

type FluxWeakeningSettings struct {
	Enabled bool
	Ki      float32
	IDMin   float32
	Ratio   float32
}

// Settings is everything the controller needs at construction time.
type Settings struct {
	PolePairs    int
	Ts           float32 // current loop period, seconds
	BusVoltage   float32 // nominal, used when samples carry no bus voltage
	SpeedDivider int

	Current PIDGains
	Speed   PIDGains

	RampStep         float32 // rpm per speed-loop tick
	StopThresholdRPM float32

	TargetID    float32
	TargetIQ    float32
	TargetSpeed float32

	CurrentFilterAlpha float32
	SpeedFilterAlpha   float32

	SensorDirection float32 // +1 or -1, overridden by polarity detection
	AngleSource     AngleSourceKind

	OpenLoop      OpenLoopSettings
	Alignment     AlignmentSettings
	Protection    ProtectionSettings
	Handoff       HandoffSettings
	FluxWeakening FluxWeakeningSettings
}

var ErrInvalidSettings = errors.New("core: invalid controller settings")

func (s *Settings) validate() error {
	if s.PolePairs <= 0 || s.Ts <= 0 || s.BusVoltage <= 0 {
		return ErrInvalidSettings
	}
	if s.Current.Limit <= 0 || s.Speed.Limit <= 0 {
		return ErrInvalidSettings
	}
	if s.SpeedDivider < 1 {
		s.SpeedDivider = 1
	}
	if s.SensorDirection >= 0 {
		s.SensorDirection = 1
	} else {
		s.SensorDirection = -1
	}
	if s.CurrentFilterAlpha <= 0 || s.CurrentFilterAlpha > 1 {
		s.CurrentFilterAlpha = 1
	}
	if s.SpeedFilterAlpha <= 0 || s.SpeedFilterAlpha > 1 {
		s.SpeedFilterAlpha = 1
	}
	if s.Alignment.Steps < 1 {
		s.Alignment.Steps = 1
	}
	if s.Alignment.Samples < 1 {
		s.Alignment.Samples = 1
	}
	return nil
}
