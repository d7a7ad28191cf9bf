//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"machine"

	"gofoc/foc"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// Per-slice register block.
const (
	pwmSliceStride = 0x14
	pwmCSR         = 0x00
	pwmCTR         = 0x08

	pwmCSRPhaseCorrect = 1 << 1
)

func sliceRegister(slice uint8, offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + uintptr(slice)*pwmSliceStride + offset))
}

// sliceOf maps a GPIO to its PWM slice: (N >> 1) & 7.
func sliceOf(pin machine.Pin) uint8 {
	return uint8(pin>>1) & 0x7
}

func peripheralFor(slice uint8) pwmPeripheral {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// threePhasePWM drives the half bridges from three slices in phase-correct
// (center aligned) mode. It implements core.PWMSink.
type threePhasePWM struct {
	pins   [3]machine.Pin
	slices [3]uint8
	pwm    [3]pwmPeripheral
	chans  [3]uint8
	top    float32
}

// newThreePhasePWM configures the phase outputs for a control frequency of
// loopHz. Phase-correct mode counts up and down, so the slices are set up
// for twice that rate and the wrap interrupt fires once per control period.
func newThreePhasePWM(pins [3]machine.Pin, loopHz float32) (*threePhasePWM, error) {
	p := &threePhasePWM{pins: pins}
	period := uint64(1e9 / (2 * loopHz))
	for i, pin := range pins {
		slice := sliceOf(pin)
		pwm := peripheralFor(slice)
		if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
			return nil, err
		}
		ch, err := pwm.Channel(pin)
		if err != nil {
			return nil, err
		}
		sliceRegister(slice, pwmCSR).SetBits(pwmCSRPhaseCorrect)
		p.slices[i] = slice
		p.pwm[i] = pwm
		p.chans[i] = ch
	}
	p.top = float32(p.pwm[0].Top())
	p.SetDuty(foc.ZeroDuty)

	// zero the counters back to back so the three carriers line up
	for _, s := range p.slices {
		sliceRegister(s, pwmCTR).Set(0)
	}
	return p, nil
}

// SetDuty writes the compare levels. d is already clamped by the controller.
func (p *threePhasePWM) SetDuty(d foc.Duty) {
	p.pwm[0].Set(p.chans[0], uint32(d.A*p.top))
	p.pwm[1].Set(p.chans[1], uint32(d.B*p.top))
	p.pwm[2].Set(p.chans[2], uint32(d.C*p.top))
}

// EnableWrapInterrupt arms the wrap interrupt of the first phase slice. In
// phase-correct mode it fires at counter zero, in the middle of the low-side
// conduction window where the shunts carry the phase currents.
func (p *threePhasePWM) EnableWrapInterrupt() {
	enableWrapIRQ(p.slices[0])
}

// Ack clears the pending wrap interrupt.
func (p *threePhasePWM) Ack() {
	ackWrapIRQ(p.slices[0])
}
