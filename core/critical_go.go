//go:build !tinygo

package core

import "sync"

// guard serializes supervisory transitions against the control cycle. On the
// host the cycle runs on an ordinary goroutine, so both sides take a mutex.
type guard struct {
	mu sync.Mutex
}

// guardState is a placeholder for the interrupt state saved on hardware.
type guardState uintptr

func (g *guard) lock() guardState {
	g.mu.Lock()
	return 0
}

func (g *guard) unlock(guardState) {
	g.mu.Unlock()
}

func (g *guard) enterCycle() { g.mu.Lock() }
func (g *guard) exitCycle()  { g.mu.Unlock() }
