package core

import "gofoc/foc"

// checkProtection evaluates the trip conditions for a running mode.
func (c *Controller) checkProtection(s CurrentSample) FaultCode {
	if code := c.electricalFault(s); code != FaultNone {
		return code
	}
	n := c.cfg.Protection.StaleAngleCycles
	if n > 0 && c.usesSensorAngle() && c.staleCount >= n {
		return FaultEncoder
	}
	return FaultNone
}

func (c *Controller) electricalFault(s CurrentSample) FaultCode {
	p := c.cfg.Protection
	if !p.Enabled {
		return FaultNone
	}
	if limit := p.RatedCurrent * p.OverCurrentRatio; limit > 0 {
		i := s.Phase
		if foc.Abs(i.A) > limit || foc.Abs(i.B) > limit || foc.Abs(i.C) > limit {
			return FaultOverCurrent
		}
	}
	if v := s.BusVoltage; v > 0 && p.RatedVoltage > 0 {
		if p.OverVoltageRatio > 0 && v > p.RatedVoltage*p.OverVoltageRatio {
			return FaultOverVoltage
		}
		if v < p.RatedVoltage*p.UnderVoltageRatio {
			return FaultUnderVoltage
		}
	}
	return FaultNone
}

func (c *Controller) usesSensorAngle() bool {
	if c.source != AngleFromSensor {
		return false
	}
	return c.mode == ModeCurrentClosedLoop || c.mode == ModeSpeedClosedLoop
}

// faultPresent reports whether the latched fault's condition still holds.
// Called from supervisory context under the guard.
func (c *Controller) faultPresent() bool {
	switch c.fault {
	case FaultOverCurrent, FaultOverVoltage, FaultUnderVoltage:
		return c.electricalFault(c.last) == c.fault
	case FaultEncoder:
		if c.hw.Sensor == nil {
			return false
		}
		if err := c.hw.Sensor.Update(); err != nil {
			return true
		}
		c.staleCount = 0
	}
	return false
}
