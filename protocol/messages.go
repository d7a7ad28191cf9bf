package protocol

// Message IDs. The firmware registers its handlers in this order, so the
// table is also the command dictionary.
const (
	MsgAdvanceMode uint16 = iota
	MsgStop
	MsgSetTargetSpeed    // rpm=%f
	MsgSetTargetCurrents // id=%f iq=%f
	MsgClearFault
	MsgGetStatus
	MsgSetAngleSource // source=%c
	MsgAlign

	// Responses (firmware to host).
	MsgCommandResult // cmd=%c code=%c
	MsgStatus        // see telemetry.EncodeStatus
)

// MessageNames maps IDs to dictionary names.
var MessageNames = map[uint16]string{
	MsgAdvanceMode:       "advance_mode",
	MsgStop:              "stop",
	MsgSetTargetSpeed:    "set_target_speed",
	MsgSetTargetCurrents: "set_target_currents",
	MsgClearFault:        "clear_fault",
	MsgGetStatus:         "get_status",
	MsgSetAngleSource:    "set_angle_source",
	MsgAlign:             "align",
	MsgCommandResult:     "command_result",
	MsgStatus:            "status",
}

// Result codes carried by command_result.
const (
	ResultOK uint8 = iota
	ResultNotIdle
	ResultFaultLatched
	ResultFaultActive
	ResultNotAligned
	ResultNoSensor
	ResultNoObserver
	ResultBadArgument
	ResultUnknownCommand
	ResultAlignmentFailed
	ResultError
)

var resultText = [...]string{
	ResultOK:              "ok",
	ResultNotIdle:         "controller is not idle",
	ResultFaultLatched:    "fault latched",
	ResultFaultActive:     "fault condition still present",
	ResultNotAligned:      "rotor offset not aligned",
	ResultNoSensor:        "no rotor sensor",
	ResultNoObserver:      "no observer",
	ResultBadArgument:     "bad argument",
	ResultUnknownCommand:  "unknown command",
	ResultAlignmentFailed: "alignment failed",
	ResultError:           "error",
}

// ResultText describes a result code.
func ResultText(code uint8) string {
	if int(code) < len(resultText) {
		return resultText[code]
	}
	return "unknown result"
}
