package core

import "gofoc/foc"

var _ CurrentSampleConsumer = (*Controller)(nil)

// OnCurrentSample implements CurrentSampleConsumer.
func (c *Controller) OnCurrentSample(s CurrentSample) {
	c.RunCycle(s)
}

// RunCycle executes one control period: sensor update, protection, the loop
// for the active mode, modulation and the observer step. It never blocks
// and does not allocate. A call that arrives while the previous one is still
// running is dropped and counted as an overrun; the next cycle that runs
// records the event.
func (c *Controller) RunCycle(s CurrentSample) {
	if !c.inCycle.CompareAndSwap(false, true) {
		c.overruns.Add(1)
		return
	}
	c.guard.enterCycle()
	c.step(s)
	c.guard.exitCycle()
	c.inCycle.Store(false)
}

func (c *Controller) step(s CurrentSample) {
	c.cycles++
	if n := c.overruns.Load(); n != c.overrunsLogged {
		c.overrunsLogged = n
		RecordTiming(EvtOverrun, uint8(c.mode), c.cycles, n, 0)
	}
	c.last = s
	c.vbus = c.cfg.BusVoltage
	if s.BusVoltage > 0 {
		c.vbus = s.BusVoltage
	}

	mode := c.mode
	if mode == ModeAlignment {
		// Align owns the PWM output and the sensor, but the bridge is
		// energized and the electrical trips still apply.
		if code := c.electricalFault(s); code != FaultNone {
			c.enterFault(code)
		}
		return
	}
	c.updateSensor()

	if !mode.Running() {
		c.output(foc.ZeroDuty)
		return
	}
	if code := c.checkProtection(s); code != FaultNone {
		c.enterFault(code)
		return
	}

	c.iab = foc.Clark(s.Phase)
	switch mode {
	case ModeOpenLoop:
		c.runOpenLoop()
	case ModeCurrentClosedLoop:
		c.angle = c.loopAngle()
		c.idq = foc.Park(c.iab, c.angle)
		c.speed = c.measuredSpeed()
		c.idRef = c.targetID
		c.iqRef = c.targetIQ
		c.runCurrentLoop()
	case ModeSpeedClosedLoop:
		c.angle = c.loopAngle()
		c.idq = foc.Park(c.iab, c.angle)
		if !c.runSpeedLoop() {
			return
		}
		c.runCurrentLoop()
	}

	c.vab = foc.InversePark(c.vdq, c.angle)
	c.output(foc.SVPWM(c.vab, c.vbus))

	if obs := c.hw.Observer; obs != nil {
		obs.Estimate(c.iab, c.vab)
	}
	c.dFilter.Update(c.idq.D)
	c.qFilter.Update(c.idq.Q)
	c.speedFilter.Update(c.speed)

	if mode == ModeOpenLoop {
		c.checkHandoff()
	}
}

func (c *Controller) runCurrentLoop() {
	c.vdq = foc.DQ{
		D: c.pidD.Calculate(c.idRef, c.idq.D),
		Q: c.pidQ.Calculate(c.iqRef, c.idq.Q),
	}
}

func (c *Controller) runOpenLoop() {
	ol := c.cfg.OpenLoop
	if ol.AccelRPM > 0 {
		c.olSpeed = foc.ApproachRate(c.olSpeed, ol.SpeedRPM, ol.AccelRPM, c.cfg.Ts)
	} else {
		c.olSpeed = ol.SpeedRPM
	}
	c.speed = c.olSpeed
	c.angle = c.olAngle
	c.idq = foc.Park(c.iab, c.angle)

	if ol.Current > 0 {
		c.idRef = 0
		c.iqRef = ol.Current
		c.runCurrentLoop()
	} else {
		c.vdq = foc.DQ{Q: ol.Voltage}
	}

	step := foc.RPMToElectrical(c.olSpeed, c.cfg.PolePairs) * c.cfg.Ts
	c.olAngle = foc.WrapAngle(c.olAngle + step)
}

// runSpeedLoop runs the outer loop on every SpeedDivider-th cycle. It returns
// false when the motor has coasted to a stop and the controller went idle.
func (c *Controller) runSpeedLoop() bool {
	if c.speedTick == 0 {
		c.speed = c.measuredSpeed()
		c.ramp.SetTarget(c.targetSpeed)
		ref := c.ramp.Update()
		if c.targetSpeed == 0 && ref == 0 && foc.Abs(c.speed) < c.cfg.StopThresholdRPM {
			c.enterIdle()
			return false
		}
		c.iqRef = c.pidSpeed.Calculate(ref, c.speed)
		c.idRef = c.targetID
		if c.fw != nil {
			c.idRef += c.fw.Update(c.vdq, c.vbus)
		}
	}
	c.speedTick++
	if c.speedTick >= c.cfg.SpeedDivider {
		c.speedTick = 0
	}
	return true
}

func (c *Controller) checkHandoff() {
	h := c.cfg.Handoff
	obs := c.hw.Observer
	if !h.Auto || obs == nil || c.source != AngleFromObserver {
		return
	}
	est := obs.SpeedRPM()
	if c.olSpeed == c.cfg.OpenLoop.SpeedRPM && foc.Abs(c.olSpeed-est) < h.WindowRPM {
		c.handoffCount++
	} else {
		c.handoffCount = 0
	}
	if c.handoffCount < h.Cycles {
		return
	}

	if c.cfg.OpenLoop.Current <= 0 {
		// V/F startup: the current loops were idle, start them at the
		// voltage that was being applied.
		c.iqRef = c.idq.Q
		c.pidD.Preload(c.vdq.D)
		c.pidQ.Preload(c.vdq.Q)
	}
	c.enterSpeedLoop(est)
	RecordTiming(EvtHandoff, 0, c.cycles, uint32(foc.Abs(est)), 0)
}

func (c *Controller) updateSensor() {
	if c.hw.Sensor == nil {
		return
	}
	if err := c.hw.Sensor.Update(); err != nil {
		c.staleCount++
		if c.staleCount == 1 {
			RecordTiming(EvtStaleAngle, uint8(c.mode), c.cycles, 0, 0)
		}
		return
	}
	c.staleCount = 0
}

// sensorAngle is the electrical angle from the rotor sensor after direction
// and offset correction.
func (c *Controller) sensorAngle() float32 {
	mech := c.direction * c.hw.Sensor.MechanicalAngle()
	return foc.ElectricalAngle(mech, c.cfg.PolePairs, c.offset)
}

func (c *Controller) loopAngle() float32 {
	if c.source == AngleFromObserver {
		return c.hw.Observer.Angle()
	}
	return c.sensorAngle()
}

func (c *Controller) measuredSpeed() float32 {
	switch {
	case c.source == AngleFromObserver && c.hw.Observer != nil:
		return c.hw.Observer.SpeedRPM()
	case c.hw.Sensor != nil:
		return c.direction * c.hw.Sensor.SpeedRPM()
	}
	return c.olSpeed
}
