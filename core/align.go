package core

import (
	"context"
	"time"

	"gofoc/foc"
)

// Align locks the rotor on the d-axis, measures the sensor offset and,
// when configured, the sensor direction. It blocks for the whole ramp and
// must be called from supervisory context while Idle. The control cycle
// leaves the PWM output and the sensor alone until Align returns.
//
// A sensor that does not answer, or a rotor that does not move during
// polarity detection, latches FaultAlignment.
func (c *Controller) Align(ctx context.Context) error {
	if c.hw.Sensor == nil {
		return ErrNoSensor
	}
	var err error
	c.critical(func() {
		if c.mode != ModeIdle {
			err = ErrNotIdle
			return
		}
		c.aligned = false
		c.setMode(ModeAlignment)
	})
	if err != nil {
		return err
	}

	offset, direction, err := c.runAlignment(ctx)

	c.critical(func() {
		if c.mode != ModeAlignment {
			// Stopped or faulted while aligning.
			if err == nil {
				err = ErrAlignmentAborted
			}
			return
		}
		switch {
		case err == nil:
			c.offset = offset
			c.direction = direction
			c.aligned = true
			c.enterIdle()
			RecordTiming(EvtAligned, 0, c.cycles, uint32(offset*1000), 0)
		case ctx.Err() != nil:
			c.enterIdle()
		default:
			c.enterFault(FaultAlignment)
		}
	})
	if err == nil {
		DebugAsync("[FOC] aligned offset=" + ftoa(offset, 3) + " dir=" + itoa(int(direction)))
	}
	return err
}

func (c *Controller) runAlignment(ctx context.Context) (offset, direction float32, err error) {
	a := c.cfg.Alignment
	for k := 1; k <= a.Steps; k++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		v := a.Voltage * float32(k) / float32(a.Steps)
		if !c.alignOutput(foc.DQ{D: v}, 0) {
			return 0, 0, ErrAlignmentAborted
		}
		c.sleep(a.StepDelay)
	}
	c.sleep(a.Settle)

	first, err := c.sampleElectrical(a.Samples)
	if err != nil {
		return 0, 0, err
	}

	direction = c.cfg.SensorDirection
	if a.DetectPolarity {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if !c.alignOutput(foc.DQ{D: a.Voltage}, a.PolarityStep) {
			return 0, 0, ErrAlignmentAborted
		}
		c.sleep(a.Settle)
		second, err := c.sampleElectrical(a.Samples)
		if err != nil {
			return 0, 0, err
		}
		delta := foc.WrapDelta(second - first)
		if foc.Abs(delta) < a.MinMovement {
			return 0, 0, ErrAlignmentFailed
		}
		direction = 1
		if delta < 0 {
			direction = -1
		}
		var reversed uint8
		if direction < 0 {
			reversed = 1
		}
		RecordTiming(EvtPolarity, reversed, c.cycles, 0, 0)
	}
	return foc.WrapAngle(direction * first), direction, nil
}

// alignOutput applies a voltage vector at a forced electrical angle. It
// refuses once something else has taken the controller out of alignment.
func (c *Controller) alignOutput(v foc.DQ, angle float32) bool {
	ok := false
	c.critical(func() {
		if c.mode != ModeAlignment {
			return
		}
		c.angle = angle
		c.vdq = v
		c.vab = foc.InversePark(v, angle)
		c.output(foc.SVPWM(c.vab, c.vbus))
		ok = true
	})
	return ok
}

// sampleElectrical returns the circular mean of the uncorrected electrical
// angle over n sensor reads. More than half of them must succeed.
func (c *Controller) sampleElectrical(n int) (float32, error) {
	var sumSin, sumCos float32
	good := 0
	for i := 0; i < n; i++ {
		if err := c.hw.Sensor.Update(); err != nil {
			continue
		}
		el := foc.WrapAngle(c.hw.Sensor.MechanicalAngle() * float32(c.cfg.PolePairs))
		s, co := foc.SinCos(el)
		sumSin += s
		sumCos += co
		good++
	}
	if good*2 <= n {
		return 0, ErrAlignmentFailed
	}
	return foc.WrapAngle(foc.Atan2(sumSin, sumCos)), nil
}

func (c *Controller) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.hw.Sleep != nil {
		c.hw.Sleep(d)
		return
	}
	time.Sleep(d)
}

// CalibrateCurrentOffsets averages n conversions with the zero vector applied
// and installs the result on the current source when it supports offsets.
// Run it while Idle and before the sampling interrupt is started.
func (c *Controller) CalibrateCurrentOffsets(n int) (foc.ABC, error) {
	src := c.hw.Currents
	if src == nil {
		return foc.ABC{}, ErrNoCurrentSource
	}
	if n < 1 {
		n = 1
	}
	var err error
	c.critical(func() {
		if c.mode != ModeIdle {
			err = ErrNotIdle
			return
		}
		c.output(foc.ZeroDuty)
	})
	if err != nil {
		return foc.ABC{}, err
	}

	offsetter, canOffset := src.(CurrentOffsetter)
	if canOffset {
		offsetter.SetCurrentOffsets(foc.ABC{})
	}
	var sum foc.ABC
	for i := 0; i < n; i++ {
		s := src.ReadCurrents()
		sum.A += s.Phase.A
		sum.B += s.Phase.B
		sum.C += s.Phase.C
	}
	k := 1 / float32(n)
	offsets := foc.ABC{A: sum.A * k, B: sum.B * k, C: sum.C * k}
	if canOffset {
		offsetter.SetCurrentOffsets(offsets)
	}
	return offsets, nil
}
