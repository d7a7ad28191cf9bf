package core

import (
	"context"
	"errors"

	"gofoc/protocol"
)

var ErrBadArgument = errors.New("core: bad command argument")

// StatusFunc receives the snapshot requested by get_status.
type StatusFunc func(Snapshot)

// statusFormat documents the status response in the dictionary. Speeds are
// in 0.1 rpm, currents in mA, voltages in mV and the angle in mrad. The
// encoding itself lives in the telemetry package.
const statusFormat = "mode=%c fault=%c source=%c aligned=%c speed=%i target=%i " +
	"ramp=%i id=%i iq=%i iq_ref=%i vd=%i vq=%i angle=%u vbus=%u cycles=%u overruns=%u"

// RegisterControlCommands binds the controller's supervisory entry points.
// Registration order matches the protocol message table.
func RegisterControlCommands(reg *CommandRegistry, c *Controller, status StatusFunc) {
	reg.Register("advance_mode", "", func(data *[]byte) error {
		return c.AdvanceMode()
	})
	reg.Register("stop", "", func(data *[]byte) error {
		c.Stop()
		return nil
	})
	reg.Register("set_target_speed", "rpm=%f", func(data *[]byte) error {
		rpm, err := protocol.DecodeVLQFloat(data)
		if err != nil {
			return err
		}
		c.SetTargetSpeed(rpm)
		return nil
	})
	reg.Register("set_target_currents", "id=%f iq=%f", func(data *[]byte) error {
		id, err := protocol.DecodeVLQFloat(data)
		if err != nil {
			return err
		}
		iq, err := protocol.DecodeVLQFloat(data)
		if err != nil {
			return err
		}
		c.SetTargetCurrents(id, iq)
		return nil
	})
	reg.Register("clear_fault", "", func(data *[]byte) error {
		return c.ClearFault()
	})
	reg.Register("get_status", "", func(data *[]byte) error {
		if status != nil {
			status(c.Snapshot())
		}
		return nil
	})
	reg.Register("set_angle_source", "source=%c", func(data *[]byte) error {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if v > uint32(AngleFromObserver) {
			return ErrBadArgument
		}
		return c.SetAngleSource(AngleSourceKind(v))
	})
	reg.Register("align", "", func(data *[]byte) error {
		return c.Align(context.Background())
	})

	reg.RegisterResponse("command_result", "cmd=%c code=%c")
	reg.RegisterResponse("status", statusFormat)
}

// HandlePayload dispatches every message in a frame payload and reports a
// result code per message. Processing stops at the first message whose
// arguments could not be decoded, since the rest of the payload can no
// longer be split.
func (r *CommandRegistry) HandlePayload(payload []byte, result func(id uint16, code uint8)) {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return
		}
		err = r.Dispatch(uint16(id), &payload)
		code := ResultCode(err)
		if result != nil {
			result(uint16(id), code)
		}
		if code == protocol.ResultBadArgument || code == protocol.ResultUnknownCommand {
			return
		}
	}
}

// ResultCode maps a command error to its wire code.
func ResultCode(err error) uint8 {
	switch {
	case err == nil:
		return protocol.ResultOK
	case errors.Is(err, ErrNotIdle):
		return protocol.ResultNotIdle
	case errors.Is(err, ErrFaultLatched):
		return protocol.ResultFaultLatched
	case errors.Is(err, ErrFaultActive):
		return protocol.ResultFaultActive
	case errors.Is(err, ErrNotAligned):
		return protocol.ResultNotAligned
	case errors.Is(err, ErrNoSensor):
		return protocol.ResultNoSensor
	case errors.Is(err, ErrNoObserver):
		return protocol.ResultNoObserver
	case errors.Is(err, ErrBadArgument),
		errors.Is(err, protocol.ErrBufferTooSmall),
		errors.Is(err, protocol.ErrInvalidVLQ):
		return protocol.ResultBadArgument
	case errors.Is(err, ErrUnknownCommand):
		return protocol.ResultUnknownCommand
	case errors.Is(err, ErrAlignmentFailed), errors.Is(err, ErrAlignmentAborted):
		return protocol.ResultAlignmentFailed
	}
	return protocol.ResultError
}
