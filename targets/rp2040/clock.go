//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040/RP2350 timer peripheral, a free running 1 MHz counter.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08
	timerTIMERAWL = timerBase + 0x0C
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// micros returns the low 32 bits of the microsecond counter. It is safe to
// call from the control interrupt.
func micros() uint32 {
	return timerRAWL.Get()
}

// millis drives the supervisory scheduler.
func millis() uint32 {
	return uint32(uptime() / 1000)
}

// uptime reads the full 64-bit counter.
func uptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		// retry if the high word rolled over between reads
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}
