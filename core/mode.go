package core

// Mode is the controller state. Exactly one is active at a time.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeAlignment
	ModeOpenLoop
	ModeCurrentClosedLoop
	ModeSpeedClosedLoop
	ModeFault
)

var modeNames = [...]string{
	ModeIdle:              "idle",
	ModeAlignment:         "alignment",
	ModeOpenLoop:          "open_loop",
	ModeCurrentClosedLoop: "current_loop",
	ModeSpeedClosedLoop:   "speed_loop",
	ModeFault:             "fault",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "mode(" + itoa(int(m)) + ")"
}

// Running reports whether the mode drives the motor from the control cycle.
func (m Mode) Running() bool {
	return m == ModeOpenLoop || m == ModeCurrentClosedLoop || m == ModeSpeedClosedLoop
}

// FaultCode records why the controller entered ModeFault.
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultOverCurrent
	FaultOverVoltage
	FaultUnderVoltage
	FaultEncoder
	FaultAlignment
)

var faultNames = [...]string{
	FaultNone:         "none",
	FaultOverCurrent:  "over_current",
	FaultOverVoltage:  "over_voltage",
	FaultUnderVoltage: "under_voltage",
	FaultEncoder:      "encoder",
	FaultAlignment:    "alignment",
}

func (f FaultCode) String() string {
	if int(f) < len(faultNames) {
		return faultNames[f]
	}
	return "fault(" + itoa(int(f)) + ")"
}

// AngleSourceKind selects where the closed loops take the rotor angle from.
type AngleSourceKind uint8

const (
	AngleFromSensor AngleSourceKind = iota
	AngleFromObserver
)

func (a AngleSourceKind) String() string {
	switch a {
	case AngleFromSensor:
		return "sensor"
	case AngleFromObserver:
		return "observer"
	}
	return "source(" + itoa(int(a)) + ")"
}

// ParseAngleSource maps a command argument to an AngleSourceKind.
func ParseAngleSource(s string) (AngleSourceKind, bool) {
	switch s {
	case "sensor", "encoder":
		return AngleFromSensor, true
	case "observer", "sensorless":
		return AngleFromObserver, true
	}
	return 0, false
}
