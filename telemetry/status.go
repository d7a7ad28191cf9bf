package telemetry

import (
	"gofoc/core"
	"gofoc/protocol"
)

// Status field scales. Values travel as VLQ integers so a full status fits
// one frame.
const (
	SpeedScale   = 10   // 0.1 rpm
	CurrentScale = 1000 // mA
	VoltageScale = 1000 // mV
	AngleScale   = 1000 // mrad
)

func scaled(x, k float32) int32 {
	v := x * k
	if v < 0 {
		return int32(v - 0.5)
	}
	return int32(v + 0.5)
}

func boolByte(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// EncodeStatus writes a status message, ID included.
func EncodeStatus(out protocol.OutputBuffer, s core.Snapshot) {
	protocol.EncodeVLQUint(out, uint32(protocol.MsgStatus))
	protocol.EncodeVLQUint(out, uint32(s.Mode))
	protocol.EncodeVLQUint(out, uint32(s.Fault))
	protocol.EncodeVLQUint(out, uint32(s.AngleSource))
	protocol.EncodeVLQUint(out, boolByte(s.Aligned))
	protocol.EncodeVLQInt(out, scaled(s.SpeedFilt, SpeedScale))
	protocol.EncodeVLQInt(out, scaled(s.TargetSpeed, SpeedScale))
	protocol.EncodeVLQInt(out, scaled(s.RampSpeed, SpeedScale))
	protocol.EncodeVLQInt(out, scaled(s.CurrentFilt.D, CurrentScale))
	protocol.EncodeVLQInt(out, scaled(s.CurrentFilt.Q, CurrentScale))
	protocol.EncodeVLQInt(out, scaled(s.CurrentRef.Q, CurrentScale))
	protocol.EncodeVLQInt(out, scaled(s.Voltage.D, VoltageScale))
	protocol.EncodeVLQInt(out, scaled(s.Voltage.Q, VoltageScale))
	protocol.EncodeVLQUint(out, uint32(scaled(s.Angle, AngleScale)))
	protocol.EncodeVLQUint(out, uint32(scaled(s.BusVoltage, VoltageScale)))
	protocol.EncodeVLQUint(out, s.Cycles)
	protocol.EncodeVLQUint(out, s.Overruns)
}

// EncodeStatusFrame writes a complete frame carrying one status message.
func EncodeStatusFrame(out protocol.OutputBuffer, seq uint8, s core.Snapshot) {
	protocol.EncodeFrame(out, seq, func(o protocol.OutputBuffer) {
		EncodeStatus(o, s)
	})
}

// DecodeStatus reads the fields of a status message whose ID has already
// been consumed. Only the fields carried on the wire are filled in; the
// filtered values land in SpeedFilt and CurrentFilt.
func DecodeStatus(data *[]byte) (core.Snapshot, error) {
	var s core.Snapshot
	var u [4]uint32
	for i := range u {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return s, err
		}
		u[i] = v
	}
	s.Mode = core.Mode(u[0])
	s.Fault = core.FaultCode(u[1])
	s.AngleSource = core.AngleSourceKind(u[2])
	s.Aligned = u[3] != 0

	var f [8]int32
	for i := range f {
		v, err := protocol.DecodeVLQInt(data)
		if err != nil {
			return s, err
		}
		f[i] = v
	}
	s.SpeedFilt = float32(f[0]) / SpeedScale
	s.TargetSpeed = float32(f[1]) / SpeedScale
	s.RampSpeed = float32(f[2]) / SpeedScale
	s.CurrentFilt.D = float32(f[3]) / CurrentScale
	s.CurrentFilt.Q = float32(f[4]) / CurrentScale
	s.CurrentRef.Q = float32(f[5]) / CurrentScale
	s.Voltage.D = float32(f[6]) / VoltageScale
	s.Voltage.Q = float32(f[7]) / VoltageScale

	var tail [4]uint32
	for i := range tail {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return s, err
		}
		tail[i] = v
	}
	s.Angle = float32(tail[0]) / AngleScale
	s.BusVoltage = float32(tail[1]) / VoltageScale
	s.Cycles = tail[2]
	s.Overruns = tail[3]
	return s, nil
}
