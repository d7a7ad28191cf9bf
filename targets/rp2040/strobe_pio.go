//go:build rp2040 || rp2350

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO program emitting one fixed-width pulse per word pushed to its FIFO.
// The control interrupt pushes a word on entry, so a scope on the strobe pin
// next to a phase output shows the interrupt latency and period jitter.
func buildStrobeProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                    // 0: pull block
		asm.Set(rp2pio.SetDestPins, 1).Delay(31).Encode(), // 1: set pins, 1 [31]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),           // 2: set pins, 0
		// .wrap
	}
}

const strobeOrigin = 0

// strobe drives a timing pin from a PIO state machine so the interrupt only
// costs one FIFO write.
type strobe struct {
	pio *rp2pio.PIO
	sm  rp2pio.StateMachine
	pin machine.Pin
}

func newStrobe(pin machine.Pin) (*strobe, error) {
	s := &strobe{pio: rp2pio.PIO0, pin: pin}
	s.sm = s.pio.StateMachine(0)
	s.sm.TryClaim()

	program := buildStrobeProgram()
	offset, err := s.pio.AddProgram(program, strobeOrigin)
	if err != nil {
		return nil, err
	}

	pin.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	// 125 MHz / 16: a pulse of about 4 µs
	cfg.SetClkDivIntFrac(16, 0)

	s.sm.Init(offset, cfg)
	s.sm.SetPindirsConsecutive(pin, 1, true)
	s.sm.SetPinsConsecutive(pin, 1, false)
	s.sm.SetEnabled(true)
	return s, nil
}

// Pulse queues one pulse. A full FIFO means the previous pulses have not
// finished and the word is dropped.
func (s *strobe) Pulse() {
	if s == nil || s.sm.IsTxFIFOFull() {
		return
	}
	s.sm.TxPut(0)
}
