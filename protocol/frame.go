package protocol

import (
	"bytes"
	"errors"
)

var (
	ErrBadFrame = errors.New("protocol: malformed frame")
	ErrBadCRC   = errors.New("protocol: frame CRC mismatch")
)

// Frame is one validated frame. Payload holds zero or more messages, each a
// VLQ message ID followed by its VLQ arguments.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// EncodeFrame appends one frame to output; payload writes the body.
// Bodies longer than PayloadMax are written anyway and rejected by the
// receiving decoder.
func EncodeFrame(output OutputBuffer, seq uint8, payload func(OutputBuffer)) {
	start := output.CurPosition()
	output.Output([]byte{0, FrameDest | seq&FrameSeqMask})
	if payload != nil {
		payload(output)
	}
	n := len(output.DataSince(start))
	output.Update(start, uint8(n+FrameTrailerSize))
	crc := CRC16(output.DataSince(start))
	output.Output([]byte{byte(crc >> 8), byte(crc), FrameSync})
}

// EncodeMessage frames a single message.
func EncodeMessage(output OutputBuffer, seq uint8, id uint16, args func(OutputBuffer)) {
	EncodeFrame(output, seq, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(id))
		if args != nil {
			args(o)
		}
	})
}

// ParseFrame validates a complete frame held in data.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < FrameMin {
		return Frame{}, ErrBufferTooSmall
	}
	n := int(data[0])
	if n < FrameMin || n > FrameMax || n > len(data) {
		return Frame{}, ErrBadFrame
	}
	if data[1]&^FrameSeqMask != FrameDest || data[n-1] != FrameSync {
		return Frame{}, ErrBadFrame
	}
	crc := uint16(data[n-3])<<8 | uint16(data[n-2])
	if crc != CRC16(data[:n-FrameTrailerSize]) {
		return Frame{}, ErrBadCRC
	}
	return Frame{
		Seq:     data[1] & FrameSeqMask,
		Payload: data[FrameHeaderSize : n-FrameTrailerSize],
	}, nil
}

// FrameDecoder reassembles frames from a byte stream. After a malformed frame
// it discards input up to the next sync byte.
type FrameDecoder struct {
	fifo    *FifoBuffer
	synced  bool
	dropped uint32
}

func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{
		fifo:   NewFifoBuffer(4 * FrameMax),
		synced: true,
	}
}

// Feed buffers incoming bytes and returns how many fit. Call Next until it
// reports no frame before feeding more.
func (d *FrameDecoder) Feed(data []byte) int {
	return d.fifo.Write(data)
}

// Next returns the next complete frame. The payload is a copy and stays
// valid after further calls.
func (d *FrameDecoder) Next() (Frame, bool) {
	for {
		data := d.fifo.Data()
		if len(data) == 0 {
			return Frame{}, false
		}
		if !d.synced {
			i := bytes.IndexByte(data, FrameSync)
			if i < 0 {
				d.fifo.Pop(len(data))
				return Frame{}, false
			}
			d.fifo.Pop(i + 1)
			d.synced = true
			continue
		}
		if data[0] == FrameSync {
			d.fifo.Pop(1)
			continue
		}
		if len(data) < FrameMin {
			return Frame{}, false
		}
		if n := int(data[0]); n >= FrameMin && n <= FrameMax && len(data) < n {
			return Frame{}, false
		}
		f, err := ParseFrame(data)
		if err != nil {
			d.synced = false
			d.dropped++
			continue
		}
		payload := make([]byte, len(f.Payload))
		copy(payload, f.Payload)
		d.fifo.Pop(len(payload) + FrameMin)
		return Frame{Seq: f.Seq, Payload: payload}, true
	}
}

// Dropped returns the number of frames discarded as malformed.
func (d *FrameDecoder) Dropped() uint32 {
	return d.dropped
}

// Reset discards buffered input.
func (d *FrameDecoder) Reset() {
	d.fifo.Reset()
	d.synced = true
}

// DispatchPayload calls fn for every message in a frame payload. fn must
// consume exactly its own arguments from args.
func DispatchPayload(payload []byte, fn func(id uint16, args *[]byte) error) error {
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			return err
		}
		if err := fn(uint16(id), &payload); err != nil {
			return err
		}
	}
	return nil
}
