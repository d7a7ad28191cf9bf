package telemetry

import (
	"errors"

	"go.einride.tech/can"

	"gofoc/core"
	"gofoc/protocol"
)

// CAN identifiers are a base plus the node ID, CANopen style.
const (
	CANStatusBase  = 0x180 // speed, currents, mode
	CANCommandBase = 0x200 // host commands
	CANVectorBase  = 0x280 // angle, bus voltage, voltage command
	CANNodeMask    = 0x7F
)

var (
	ErrCANFrame   = errors.New("telemetry: unexpected CAN frame")
	ErrCANCommand = errors.New("telemetry: unsupported CAN command")
)

// signal is a little-endian bit field with a linear scale.
type signal struct {
	start, length uint8
	signed        bool
	factor        float32
}

func (s signal) set(d *can.Data, v float32) {
	raw := v / s.factor
	if raw < 0 {
		raw -= 0.5
	} else {
		raw += 0.5
	}
	if s.signed {
		max := float32(int64(1)<<(s.length-1) - 1)
		d.SetSignedBitsLittleEndian(s.start, s.length, int64(clampRaw(raw, -max-1, max)))
		return
	}
	max := float32(uint64(1)<<s.length - 1)
	d.SetUnsignedBitsLittleEndian(s.start, s.length, uint64(clampRaw(raw, 0, max)))
}

func (s signal) get(d can.Data) float32 {
	if s.signed {
		return float32(d.SignedBitsLittleEndian(s.start, s.length)) * s.factor
	}
	return float32(d.UnsignedBitsLittleEndian(s.start, s.length)) * s.factor
}

func clampRaw(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var (
	sigSpeed   = signal{0, 16, true, 1}
	sigIQ      = signal{16, 16, true, 0.001}
	sigID      = signal{32, 16, true, 0.001}
	sigMode    = signal{48, 4, false, 1}
	sigFault   = signal{52, 4, false, 1}
	sigSource  = signal{56, 1, false, 1}
	sigAligned = signal{57, 1, false, 1}

	sigAngle = signal{0, 16, false, 0.0001}
	sigVbus  = signal{16, 16, false, 0.01}
	sigVD    = signal{32, 16, true, 0.001}
	sigVQ    = signal{48, 16, true, 0.001}

	sigCmdSpeed = signal{8, 24, true, 0.01}
	sigCmdID    = signal{8, 16, true, 0.001}
	sigCmdIQ    = signal{24, 16, true, 0.001}
	sigCmdArg   = signal{8, 8, false, 1}
)

// EncodeCAN returns the status and vector frames for s.
func EncodeCAN(node uint8, s core.Snapshot) [2]can.Frame {
	var status, vector can.Frame
	status.ID = CANStatusBase + uint32(node&CANNodeMask)
	status.Length = 8
	sigSpeed.set(&status.Data, s.SpeedFilt)
	sigIQ.set(&status.Data, s.CurrentFilt.Q)
	sigID.set(&status.Data, s.CurrentFilt.D)
	sigMode.set(&status.Data, float32(s.Mode))
	sigFault.set(&status.Data, float32(s.Fault))
	sigSource.set(&status.Data, float32(s.AngleSource))
	if s.Aligned {
		sigAligned.set(&status.Data, 1)
	}

	vector.ID = CANVectorBase + uint32(node&CANNodeMask)
	vector.Length = 8
	sigAngle.set(&vector.Data, s.Angle)
	sigVbus.set(&vector.Data, s.BusVoltage)
	sigVD.set(&vector.Data, s.Voltage.D)
	sigVQ.set(&vector.Data, s.Voltage.Q)
	return [2]can.Frame{status, vector}
}

// DecodeCAN merges a status or vector frame into s and returns the node it
// came from.
func DecodeCAN(f can.Frame, s *core.Snapshot) (uint8, error) {
	if f.IsRemote || f.IsExtended || f.Length != 8 {
		return 0, ErrCANFrame
	}
	node := uint8(f.ID & CANNodeMask)
	switch f.ID &^ CANNodeMask {
	case CANStatusBase:
		s.SpeedFilt = sigSpeed.get(f.Data)
		s.CurrentFilt.Q = sigIQ.get(f.Data)
		s.CurrentFilt.D = sigID.get(f.Data)
		s.Mode = core.Mode(sigMode.get(f.Data))
		s.Fault = core.FaultCode(sigFault.get(f.Data))
		s.AngleSource = core.AngleSourceKind(sigSource.get(f.Data))
		s.Aligned = sigAligned.get(f.Data) != 0
	case CANVectorBase:
		s.Angle = sigAngle.get(f.Data)
		s.BusVoltage = sigVbus.get(f.Data)
		s.Voltage.D = sigVD.get(f.Data)
		s.Voltage.Q = sigVQ.get(f.Data)
	default:
		return node, ErrCANFrame
	}
	return node, nil
}

// EncodeCANCommand packs a host command into a command frame. Byte 0 is the
// message ID; args follow the same order as on the serial link.
func EncodeCANCommand(node uint8, id uint16, args ...float32) (can.Frame, error) {
	f := can.Frame{ID: CANCommandBase + uint32(node&CANNodeMask)}
	f.Data[0] = byte(id)
	f.Length = 1
	switch id {
	case protocol.MsgAdvanceMode, protocol.MsgStop, protocol.MsgClearFault,
		protocol.MsgGetStatus, protocol.MsgAlign:
		return f, nil
	case protocol.MsgSetTargetSpeed:
		if len(args) != 1 {
			return f, ErrCANCommand
		}
		sigCmdSpeed.set(&f.Data, args[0])
		f.Length = 4
	case protocol.MsgSetTargetCurrents:
		if len(args) != 2 {
			return f, ErrCANCommand
		}
		sigCmdID.set(&f.Data, args[0])
		sigCmdIQ.set(&f.Data, args[1])
		f.Length = 5
	case protocol.MsgSetAngleSource:
		if len(args) != 1 {
			return f, ErrCANCommand
		}
		sigCmdArg.set(&f.Data, args[0])
		f.Length = 2
	default:
		return f, ErrCANCommand
	}
	return f, nil
}

// DecodeCANCommand turns a command frame into a host-link payload that the
// firmware command registry can dispatch.
func DecodeCANCommand(f can.Frame, out protocol.OutputBuffer) (node uint8, err error) {
	if f.IsRemote || f.Length < 1 || f.ID&^CANNodeMask != CANCommandBase {
		return 0, ErrCANFrame
	}
	node = uint8(f.ID & CANNodeMask)
	id := uint16(f.Data[0])
	switch id {
	case protocol.MsgAdvanceMode, protocol.MsgStop, protocol.MsgClearFault,
		protocol.MsgGetStatus, protocol.MsgAlign:
		protocol.EncodeVLQUint(out, uint32(id))
	case protocol.MsgSetTargetSpeed:
		if f.Length < 4 {
			return node, ErrCANFrame
		}
		protocol.EncodeVLQUint(out, uint32(id))
		protocol.EncodeVLQFloat(out, sigCmdSpeed.get(f.Data))
	case protocol.MsgSetTargetCurrents:
		if f.Length < 5 {
			return node, ErrCANFrame
		}
		protocol.EncodeVLQUint(out, uint32(id))
		protocol.EncodeVLQFloat(out, sigCmdID.get(f.Data))
		protocol.EncodeVLQFloat(out, sigCmdIQ.get(f.Data))
	case protocol.MsgSetAngleSource:
		if f.Length < 2 {
			return node, ErrCANFrame
		}
		protocol.EncodeVLQUint(out, uint32(id))
		protocol.EncodeVLQUint(out, uint32(sigCmdArg.get(f.Data)))
	default:
		return node, ErrCANCommand
	}
	return node, nil
}
