// Package telemetry formats controller snapshots for the outside world:
// VOFA+ JustFloat streams, status frames on the host link and CAN frames.
package telemetry

import (
	"encoding/binary"
	"math"

	"gofoc/core"
)

// JustFloatTail terminates every JustFloat frame.
var JustFloatTail = [4]byte{0x00, 0x00, 0x80, 0x7f}

// EncodeJustFloat appends one JustFloat frame: each value as a little
// endian float32, then the tail.
func EncodeJustFloat(dst []byte, values []float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return append(dst, JustFloatTail[:]...)
}

// ChannelNames labels the values Channels produces, in order.
var ChannelNames = []string{
	"speed", "ramp", "target_speed",
	"id", "iq", "iq_ref",
	"vd", "vq",
	"angle", "sensor_angle", "observer_angle", "observer_speed",
	"mode",
}

// Channels appends the standard channel set of s to dst.
func Channels(dst []float32, s core.Snapshot) []float32 {
	return append(dst,
		s.SpeedFilt, s.RampSpeed, s.TargetSpeed,
		s.CurrentFilt.D, s.CurrentFilt.Q, s.CurrentRef.Q,
		s.Voltage.D, s.Voltage.Q,
		s.Angle, s.SensorAngle, s.ObserverAngle, s.ObserverSpeed,
		float32(s.Mode),
	)
}

// DecodeJustFloat splits a stream into frames of n values. It returns the
// complete frames found and the number of bytes consumed.
func DecodeJustFloat(data []byte, n int) ([][]float32, int) {
	size := 4*n + len(JustFloatTail)
	var frames [][]float32
	used := 0
	for len(data)-used >= size {
		frame := data[used : used+size]
		if [4]byte(frame[4*n:]) != JustFloatTail {
			used++
			continue
		}
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame[4*i:]))
		}
		frames = append(frames, values)
		used += size
	}
	return frames, used
}
