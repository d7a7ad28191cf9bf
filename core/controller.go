package core

import (
	"errors"
	"sync/atomic"

	"gofoc/foc"
)

var (
	ErrNoPWM            = errors.New("core: no PWM sink")
	ErrNotIdle          = errors.New("core: controller is not idle")
	ErrFaultLatched     = errors.New("core: fault latched")
	ErrFaultActive      = errors.New("core: fault condition still present")
	ErrNotAligned       = errors.New("core: rotor offset not aligned")
	ErrNoSensor         = errors.New("core: no rotor sensor")
	ErrNoObserver       = errors.New("core: no observer")
	ErrNoCurrentSource  = errors.New("core: no current source")
	ErrAlignmentFailed  = errors.New("core: alignment failed")
	ErrAlignmentAborted = errors.New("core: alignment aborted")
)

// Controller is the FOC control core. RunCycle is its only entry point from
// interrupt context; every other method is supervisory and performs its
// state change under the critical-section guard.
type Controller struct {
	cfg   Settings
	hw    Hardware
	guard guard

	mode   Mode
	fault  FaultCode
	source AngleSourceKind

	targetSpeed float32
	targetID    float32
	targetIQ    float32
	idRef       float32
	iqRef       float32

	pidD     foc.PID
	pidQ     foc.PID
	pidSpeed foc.PID
	ramp     foc.Ramp
	fw       *foc.FluxWeakening

	offset    float32
	direction float32
	aligned   bool

	olAngle      float32
	olSpeed      float32
	handoffCount int
	speedTick    int
	staleCount   int

	angle float32
	speed float32
	vbus  float32
	iab   foc.AlphaBeta
	idq   foc.DQ
	vdq   foc.DQ
	vab   foc.AlphaBeta
	duty  foc.Duty
	last  CurrentSample

	dFilter     foc.LowPass
	qFilter     foc.LowPass
	speedFilter foc.LowPass

	cycles         uint32
	inCycle        atomic.Bool
	overruns       atomic.Uint32
	overrunsLogged uint32
}

// NewController builds a controller in ModeIdle and writes the zero vector to
// the PWM sink.
func NewController(cfg Settings, hw Hardware) (*Controller, error) {
	if hw.PWM == nil {
		return nil, ErrNoPWM
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:         cfg,
		hw:          hw,
		source:      cfg.AngleSource,
		direction:   cfg.SensorDirection,
		targetSpeed: cfg.TargetSpeed,
		targetID:    cfg.TargetID,
		targetIQ:    cfg.TargetIQ,
		vbus:        cfg.BusVoltage,
	}
	if err := c.checkSource(c.source); err != nil {
		return nil, err
	}

	cur := cfg.Current
	c.pidD.Init(cur.Kp, cur.Ki, cur.Kd, -cur.Limit, cur.Limit)
	c.pidQ.Init(cur.Kp, cur.Ki, cur.Kd, -cur.Limit, cur.Limit)
	sp := cfg.Speed
	c.pidSpeed.Init(sp.Kp, sp.Ki, sp.Kd, -sp.Limit, sp.Limit)
	c.ramp.Step = foc.Abs(cfg.RampStep)

	if fw := cfg.FluxWeakening; fw.Enabled {
		c.fw = foc.NewFluxWeakening(fw.Ki, fw.IDMin, fw.Ratio)
	}
	c.dFilter.Alpha = cfg.CurrentFilterAlpha
	c.qFilter.Alpha = cfg.CurrentFilterAlpha
	c.speedFilter.Alpha = cfg.SpeedFilterAlpha

	c.output(foc.ZeroDuty)
	return c, nil
}

// critical runs fn with the control cycle excluded.
func (c *Controller) critical(fn func()) {
	state := c.guard.lock()
	defer c.guard.unlock(state)
	fn()
}

func (c *Controller) checkSource(src AngleSourceKind) error {
	switch src {
	case AngleFromSensor:
		if c.hw.Sensor == nil {
			return ErrNoSensor
		}
	case AngleFromObserver:
		if c.hw.Observer == nil {
			return ErrNoObserver
		}
	}
	return nil
}

// AdvanceMode steps Idle → OpenLoop → CurrentClosedLoop → SpeedClosedLoop →
// Idle.
func (c *Controller) AdvanceMode() error {
	var err error
	c.critical(func() {
		switch c.mode {
		case ModeIdle:
			c.enterOpenLoop()
		case ModeOpenLoop:
			err = c.enterCurrentLoop()
		case ModeCurrentClosedLoop:
			c.enterSpeedLoop(c.measuredSpeed())
		case ModeSpeedClosedLoop:
			c.enterIdle()
		case ModeAlignment:
			err = ErrNotIdle
		case ModeFault:
			err = ErrFaultLatched
		}
	})
	return err
}

// Stop forces Idle and the zero vector. A latched fault stays latched.
func (c *Controller) Stop() {
	c.critical(func() {
		if c.mode == ModeFault {
			c.output(foc.ZeroDuty)
			return
		}
		c.enterIdle()
	})
}

// SetTargetSpeed sets the speed loop target in rpm. The ramp moves toward it
// at the configured step.
func (c *Controller) SetTargetSpeed(rpm float32) {
	c.critical(func() {
		c.targetSpeed = rpm
	})
}

// SetTargetCurrents sets the d and q current targets used in
// CurrentClosedLoop. The d target also feeds the speed loop.
func (c *Controller) SetTargetCurrents(id, iq float32) {
	c.critical(func() {
		c.targetID = id
		c.targetIQ = iq
	})
}

// SetAngleSource selects the angle used by the closed loops. It is only
// accepted before the closed loops run.
func (c *Controller) SetAngleSource(src AngleSourceKind) error {
	if err := c.checkSource(src); err != nil {
		return err
	}
	var err error
	c.critical(func() {
		if c.mode != ModeIdle && c.mode != ModeOpenLoop {
			err = ErrNotIdle
			return
		}
		c.source = src
		c.handoffCount = 0
	})
	return err
}

// ClearFault acknowledges a latched fault and returns to Idle. It fails with
// ErrFaultActive while the condition that caused it is still present.
func (c *Controller) ClearFault() error {
	var err error
	c.critical(func() {
		if c.mode != ModeFault {
			return
		}
		if c.faultPresent() {
			err = ErrFaultActive
			return
		}
		code := c.fault
		c.fault = FaultNone
		c.enterIdle()
		RecordTiming(EvtFaultCleared, uint8(code), c.cycles, 0, 0)
	})
	return err
}

func (c *Controller) Mode() Mode                   { return c.mode }
func (c *Controller) Fault() FaultCode             { return c.fault }
func (c *Controller) AngleSource() AngleSourceKind { return c.source }
func (c *Controller) Aligned() bool                { return c.aligned }
func (c *Controller) Offset() float32              { return c.offset }
func (c *Controller) Direction() float32           { return c.direction }
func (c *Controller) Overruns() uint32             { return c.overruns.Load() }

// SetOffset installs a previously measured alignment result so a restart can
// skip Align.
func (c *Controller) SetOffset(offset, direction float32) error {
	var err error
	c.critical(func() {
		if c.mode != ModeIdle {
			err = ErrNotIdle
			return
		}
		c.offset = foc.WrapAngle(offset)
		c.direction = 1
		if direction < 0 {
			c.direction = -1
		}
		c.aligned = true
	})
	return err
}

// Transitions. All of them run either in the control cycle or under the
// guard.

func (c *Controller) setMode(m Mode) {
	if c.mode != m {
		RecordTiming(EvtModeChange, uint8(m), c.cycles, uint32(c.mode), 0)
	}
	c.mode = m
}

func (c *Controller) output(d foc.Duty) {
	c.duty = d.Clamp()
	c.hw.PWM.SetDuty(c.duty)
}

func (c *Controller) resetLoops() {
	c.pidD.Reset()
	c.pidQ.Reset()
	c.pidSpeed.Reset()
	c.ramp.Reset(0)
	if c.fw != nil {
		c.fw.Reset()
	}
	c.vdq = foc.DQ{}
	c.vab = foc.AlphaBeta{}
	c.idRef = 0
	c.iqRef = 0
	c.olSpeed = 0
	c.handoffCount = 0
	c.speedTick = 0
}

// enterIdle writes the zero vector before the loop state is dropped, so no
// stale command can be applied afterwards.
func (c *Controller) enterIdle() {
	c.output(foc.ZeroDuty)
	c.setMode(ModeIdle)
	c.resetLoops()
}

func (c *Controller) enterFault(code FaultCode) {
	c.output(foc.ZeroDuty)
	c.fault = code
	c.setMode(ModeFault)
	c.resetLoops()
	RecordTiming(EvtFault, uint8(code), c.cycles, 0, 0)
}

func (c *Controller) enterOpenLoop() {
	c.resetLoops()
	c.olAngle = 0
	if c.cfg.OpenLoop.AccelRPM <= 0 {
		c.olSpeed = c.cfg.OpenLoop.SpeedRPM
	}
	if obs := c.hw.Observer; obs != nil {
		obs.Reset()
	}
	c.setMode(ModeOpenLoop)
}

func (c *Controller) enterCurrentLoop() error {
	if err := c.checkSource(c.source); err != nil {
		return err
	}
	if c.source == AngleFromSensor && !c.aligned {
		return ErrNotAligned
	}
	c.pidD.Reset()
	c.pidQ.Reset()
	c.idRef = c.targetID
	c.iqRef = c.targetIQ
	c.setMode(ModeCurrentClosedLoop)
	return nil
}

// enterSpeedLoop is bumpless: the speed PID continues from the present q
// current reference, the ramp starts at the measured speed, and the current
// loops keep their integrators.
func (c *Controller) enterSpeedLoop(measured float32) {
	c.pidSpeed.Reset()
	c.pidSpeed.Preload(c.iqRef)
	c.ramp.Reset(measured)
	c.ramp.SetTarget(c.targetSpeed)
	c.speed = measured
	c.speedTick = 0
	if c.fw != nil {
		c.fw.Reset()
	}
	c.setMode(ModeSpeedClosedLoop)
}
