//go:build tinygo

package core

import "runtime/interrupt"

// guard masks interrupts around supervisory transitions. The control cycle
// itself runs in the PWM interrupt and cannot be preempted by the supervisor,
// so it takes nothing.
type guard struct{}

type guardState = interrupt.State

func (g *guard) lock() guardState {
	return interrupt.Disable()
}

func (g *guard) unlock(state guardState) {
	interrupt.Restore(state)
}

func (g *guard) enterCycle() {}
func (g *guard) exitCycle()  {}
