// Package protocol implements the framed command link between the FOC
// firmware and host tools: VLQ argument encoding, CRC16-protected frames
// and the message table both ends agree on.
package protocol

// Version is reported by get_status consumers that want to check both ends
// speak the same message table.
const Version = "0.2.0"

// Frame layout: len, seq, payload..., crc_hi, crc_lo, sync.
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64
	PayloadMax       = FrameMax - FrameMin

	FrameSync    = 0x7E
	FrameDest    = 0x10
	FrameSeqMask = 0x0F

	// MessageMax bounds a scratch buffer holding several frames.
	MessageMax = 512
)
