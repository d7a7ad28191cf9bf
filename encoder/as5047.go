// Package encoder drives the AS5047 14-bit magnetic rotor position sensor and
// estimates shaft speed from its raw counts.
package encoder

import (
	"errors"

	"tinygo.org/x/drivers"
)

// AS5047 registers.
const (
	RegNOP       = 0x0000
	RegERRFL     = 0x0001
	RegPROG      = 0x0003
	RegZPOSM     = 0x0016
	RegZPOSL     = 0x0017
	RegSETTINGS1 = 0x0018
	RegSETTINGS2 = 0x0019
	RegDIAAGC    = 0x3FFC
	RegMAG       = 0x3FFD
	RegANGLEUNC  = 0x3FFE
	RegANGLECOM  = 0x3FFF
)

// Counts is the number of positions per mechanical revolution.
const Counts = 1 << 14

const (
	readBit   = 0x4000
	errorBit  = 0x4000
	parityBit = 0x8000
	dataMask  = 0x3FFF
)

// ERRFL bits.
const (
	ErrFraming = 1 << 0
	ErrCommand = 1 << 1
	ErrParityF = 1 << 2
)

var (
	ErrParity       = errors.New("encoder: response parity error")
	ErrEncoderFault = errors.New("encoder: sensor reported an error")
)

// Pin is a chip-select output. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// AS5047 talks to the sensor over SPI mode 1 with 16-bit frames. Every
// frame returns the answer to the previous command, so a register read
// costs two frames.
type AS5047 struct {
	bus drivers.SPI
	cs  Pin
	tx  [2]byte
	rx  [2]byte
}

// NewAS5047 returns a driver on an already configured bus. cs is left high.
func NewAS5047(bus drivers.SPI, cs Pin) *AS5047 {
	cs.High()
	return &AS5047{bus: bus, cs: cs}
}

// parity returns 1 when v has an odd number of set bits in bits 0..14.
func parity(v uint16) uint16 {
	v &= 0x7FFF
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

// command builds a read frame for addr with even parity.
func command(addr uint16) uint16 {
	cmd := addr&dataMask | readBit
	if parity(cmd) == 1 {
		cmd |= parityBit
	}
	return cmd
}

func (a *AS5047) transfer(frame uint16) (uint16, error) {
	a.tx[0] = byte(frame >> 8)
	a.tx[1] = byte(frame)
	a.cs.Low()
	err := a.bus.Tx(a.tx[:], a.rx[:])
	a.cs.High()
	if err != nil {
		return 0, err
	}
	return uint16(a.rx[0])<<8 | uint16(a.rx[1]), nil
}

// ReadRegister reads a 14-bit register. A response with bad parity returns
// ErrParity; one with the error flag set returns ErrEncoderFault.
func (a *AS5047) ReadRegister(addr uint16) (uint16, error) {
	if _, err := a.transfer(command(addr)); err != nil {
		return 0, err
	}
	resp, err := a.transfer(command(RegNOP))
	if err != nil {
		return 0, err
	}
	if parity(resp) != resp>>15 {
		return 0, ErrParity
	}
	if resp&errorBit != 0 {
		return 0, ErrEncoderFault
	}
	return resp & dataMask, nil
}

// ReadAngle returns the dynamic-angle-compensated position in counts.
func (a *AS5047) ReadAngle() (uint16, error) {
	return a.ReadRegister(RegANGLECOM)
}

// ReadErrors returns and clears the ERRFL register.
func (a *AS5047) ReadErrors() (uint16, error) {
	return a.ReadRegister(RegERRFL)
}

// Magnitude returns the CORDIC magnitude, useful to check magnet placement.
func (a *AS5047) Magnitude() (uint16, error) {
	return a.ReadRegister(RegMAG)
}
