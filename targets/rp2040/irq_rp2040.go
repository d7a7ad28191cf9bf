//go:build rp2040

package main

import "device/rp"

const (
	pwmWrapIRQ = rp.IRQ_PWM_IRQ_WRAP
	pwmBase    = 0x40050000
)

func enableWrapIRQ(slice uint8) { rp.PWM.INTE.SetBits(1 << slice) }
func ackWrapIRQ(slice uint8)    { rp.PWM.INTR.Set(1 << slice) }
