package encoder

import (
	"errors"
	"testing"
)

// fakeBus models the AS5047 pipeline: each frame returns the answer to the
// previous command.
type fakeBus struct {
	regs      map[uint16]uint16
	pending   uint16
	frames    []uint16
	errorFlag bool
	badParity bool
	err       error
}

func (b *fakeBus) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	cmd := uint16(w[0])<<8 | uint16(w[1])
	b.frames = append(b.frames, cmd)
	r[0] = byte(b.pending >> 8)
	r[1] = byte(b.pending)

	resp := b.regs[cmd&dataMask] & dataMask
	if b.errorFlag {
		resp |= errorBit
	}
	if parity(resp) == 1 {
		resp |= parityBit
	}
	if b.badParity {
		resp ^= parityBit
	}
	b.pending = resp
	return nil
}

func (b *fakeBus) Transfer(w byte) (byte, error) { return 0, nil }

type fakePin struct {
	high    bool
	toggles int
}

func (p *fakePin) High() { p.high = true; p.toggles++ }
func (p *fakePin) Low()  { p.high = false; p.toggles++ }

func TestCommandFrames(t *testing.T) {
	tests := []struct {
		addr uint16
		want uint16
	}{
		{RegANGLECOM, 0xFFFF},
		{RegNOP, 0xC000},
		{RegERRFL, 0x4001},
		{RegMAG, 0x7FFD},
	}
	for _, tt := range tests {
		if got := command(tt.addr); got != tt.want {
			t.Errorf("command(%#04x): expected %#04x, got %#04x", tt.addr, tt.want, got)
		}
	}
}

func TestReadAngle(t *testing.T) {
	bus := &fakeBus{regs: map[uint16]uint16{RegANGLECOM: 1234}}
	cs := &fakePin{}
	enc := NewAS5047(bus, cs)

	angle, err := enc.ReadAngle()
	if err != nil {
		t.Fatalf("ReadAngle failed: %v", err)
	}
	if angle != 1234 {
		t.Errorf("Expected 1234, got %d", angle)
	}
	if len(bus.frames) != 2 || bus.frames[0] != 0xFFFF || bus.frames[1] != 0xC000 {
		t.Errorf("Expected read then NOP frames, got %#04x", bus.frames)
	}
	if !cs.high || cs.toggles != 5 {
		t.Errorf("Expected chip select released after two frames, got high=%v toggles=%d", cs.high, cs.toggles)
	}
}

func TestReadRegisterErrors(t *testing.T) {
	bus := &fakeBus{regs: map[uint16]uint16{RegANGLECOM: 100}, badParity: true}
	enc := NewAS5047(bus, &fakePin{})
	if _, err := enc.ReadAngle(); err != ErrParity {
		t.Errorf("Expected ErrParity, got %v", err)
	}

	bus.badParity = false
	bus.errorFlag = true
	if _, err := enc.ReadAngle(); err != ErrEncoderFault {
		t.Errorf("Expected ErrEncoderFault, got %v", err)
	}

	busErr := errors.New("bus down")
	bus.err = busErr
	if _, err := enc.ReadAngle(); err != busErr {
		t.Errorf("Expected bus error, got %v", err)
	}
}

func TestReadErrorFlags(t *testing.T) {
	bus := &fakeBus{regs: map[uint16]uint16{RegERRFL: ErrFraming | ErrParityF}}
	enc := NewAS5047(bus, &fakePin{})
	flags, err := enc.ReadErrors()
	if err != nil {
		t.Fatalf("ReadErrors failed: %v", err)
	}
	if flags != ErrFraming|ErrParityF {
		t.Errorf("Expected flags %#x, got %#x", ErrFraming|ErrParityF, flags)
	}
}
