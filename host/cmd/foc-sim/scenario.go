package main

import (
	"context"
	"fmt"

	"gofoc/core"
	"gofoc/sim"
)

// scenario is the startup sequence an operator would run from foc-host,
// played against the simulated motor.
type scenario struct {
	Duration  float32 // seconds, total
	OpenLoop  float32 // seconds of forced-angle startup
	LoadAt    float32 // seconds; applies LoadTorque from then on
	Load      float32 // N·m
	Every     int     // emit one sample per Every cycles
	SkipAlign bool
}

type emitFunc func(t float32, s core.Snapshot) error

type runner struct {
	rig   *sim.Rig
	sc    scenario
	emit  emitFunc
	cycle int
	end   int
	err   error
}

func (r *runner) now() float32 {
	return float32(r.cycle) / float32(r.rig.Seconds(1))
}

// run advances up to d seconds, stopping early at the end of the scenario or
// on a fault.
func (r *runner) run(d float32) {
	n := r.rig.Seconds(d)
	if r.cycle+n > r.end {
		n = r.end - r.cycle
	}
	loadCycle := r.rig.Seconds(r.sc.LoadAt)
	for i := 0; i < n && r.err == nil; i++ {
		if r.sc.Load != 0 && r.cycle == loadCycle {
			r.rig.Motor.SetLoadTorque(r.sc.Load)
		}
		r.rig.Run(1, nil)
		r.cycle++
		c := r.rig.Controller
		if r.cycle%r.sc.Every == 0 && r.emit != nil {
			r.err = r.emit(r.now(), c.Snapshot())
		}
		if c.Mode() == core.ModeFault {
			r.err = fmt.Errorf("fault %v at t=%.4f s", c.Fault(), r.now())
		}
	}
}

func (r *runner) advance(want core.Mode) {
	if r.err != nil {
		return
	}
	c := r.rig.Controller
	if err := c.AdvanceMode(); err != nil {
		r.err = fmt.Errorf("entering %v: %w", want, err)
		return
	}
	if c.Mode() != want {
		r.err = fmt.Errorf("expected %v, controller is in %v", want, c.Mode())
	}
}

// simulate plays sc on rig and returns the final snapshot.
func simulate(ctx context.Context, rig *sim.Rig, sc scenario, emit emitFunc) (core.Snapshot, error) {
	if sc.Every < 1 {
		sc.Every = 1
	}
	c := rig.Controller
	r := &runner{rig: rig, sc: sc, emit: emit, end: rig.Seconds(sc.Duration)}

	if c.AngleSource() == core.AngleFromSensor && !c.Aligned() && !sc.SkipAlign {
		if err := c.Align(ctx); err != nil {
			return c.Snapshot(), fmt.Errorf("align: %w", err)
		}
	}
	r.run(0.02)

	r.advance(core.ModeOpenLoop)
	r.run(sc.OpenLoop)

	// with the observer as angle source the controller may already have
	// handed over to the speed loop on its own
	if r.err == nil && c.Mode() == core.ModeOpenLoop {
		r.advance(core.ModeCurrentClosedLoop)
		r.run(0.05)
		r.advance(core.ModeSpeedClosedLoop)
	}
	for r.err == nil && r.cycle < r.end {
		if err := ctx.Err(); err != nil {
			return c.Snapshot(), err
		}
		r.run(0.1)
	}
	return c.Snapshot(), r.err
}
