//go:build rp2350

package main

import "device/rp"

const (
	pwmWrapIRQ = rp.IRQ_PWM_IRQ_WRAP_0
	pwmBase    = 0x400a8000
)

func enableWrapIRQ(slice uint8) { rp.PWM.IRQ0_INTE.SetBits(1 << slice) }
func ackWrapIRQ(slice uint8)    { rp.PWM.INTR.Set(1 << slice) }
