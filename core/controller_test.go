package core

import (
	"testing"

	"gofoc/foc"
)

func TestNewControllerStartsIdle(t *testing.T) {
	r := newTestRig(t, testSettings())
	if r.c.Mode() != ModeIdle {
		t.Errorf("Expected idle, got %v", r.c.Mode())
	}
	if r.pwm.last != foc.ZeroDuty {
		t.Errorf("Expected zero vector at start, got %+v", r.pwm.last)
	}
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(testSettings(), Hardware{}); err != ErrNoPWM {
		t.Errorf("Expected ErrNoPWM, got %v", err)
	}
	if _, err := NewController(testSettings(), Hardware{PWM: &fakePWM{}}); err != ErrNoSensor {
		t.Errorf("Expected ErrNoSensor without sensor, got %v", err)
	}
	cfg := testSettings()
	cfg.PolePairs = 0
	if _, err := NewController(cfg, Hardware{PWM: &fakePWM{}, Sensor: &fakeSensor{}}); err != ErrInvalidSettings {
		t.Errorf("Expected ErrInvalidSettings, got %v", err)
	}
}

func TestAdvanceModeCycle(t *testing.T) {
	r := newTestRig(t, testSettings())

	if err := r.c.AdvanceMode(); err != nil || r.c.Mode() != ModeOpenLoop {
		t.Fatalf("Expected open loop, got %v (%v)", r.c.Mode(), err)
	}
	if err := r.c.AdvanceMode(); err != ErrNotAligned {
		t.Fatalf("Expected ErrNotAligned before alignment, got %v", err)
	}
	r.c.Stop()
	r.enter(t, ModeCurrentClosedLoop)

	want := []Mode{ModeSpeedClosedLoop, ModeIdle, ModeOpenLoop}
	for _, m := range want {
		if err := r.c.AdvanceMode(); err != nil {
			t.Fatalf("AdvanceMode failed: %v", err)
		}
		if r.c.Mode() != m {
			t.Errorf("Expected %v, got %v", m, r.c.Mode())
		}
	}
}

func TestOpenLoopAngleAdvances(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.enter(t, ModeOpenLoop)
	r.run(100, quiet)

	step := foc.RPMToElectrical(100, 7) * 1e-4
	want := foc.WrapAngle(100 * step)
	if d := foc.Abs(r.c.olAngle - want); d > 1e-4 {
		t.Errorf("Expected open-loop angle %v, got %v", want, r.c.olAngle)
	}
	if r.c.vdq.Q != 1 || r.c.vdq.D != 0 {
		t.Errorf("Expected fixed q voltage 1 V, got %+v", r.c.vdq)
	}
	if r.pwm.last == foc.ZeroDuty {
		t.Error("Expected a non-zero vector in open loop")
	}
}

func TestOpenLoopAcceleration(t *testing.T) {
	cfg := testSettings()
	cfg.OpenLoop.AccelRPM = 1000
	r := newTestRig(t, cfg)
	r.enter(t, ModeOpenLoop)

	r.run(500, quiet) // 50 ms at 1000 rpm/s
	if d := foc.Abs(r.c.olSpeed - 50); d > 0.5 {
		t.Errorf("Expected about 50 rpm after 50 ms, got %v", r.c.olSpeed)
	}
	r.run(1000, quiet)
	if r.c.olSpeed != 100 {
		t.Errorf("Expected open-loop speed to settle at 100 rpm, got %v", r.c.olSpeed)
	}
}

func TestCurrentLoopResetOnEntry(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.enter(t, ModeCurrentClosedLoop)
	r.run(20, quiet)
	if r.c.pidQ.Integral == 0 {
		t.Fatal("Expected the q integrator to have accumulated")
	}
	r.c.Stop()
	r.enter(t, ModeCurrentClosedLoop)
	if r.c.pidQ.Integral != 0 || r.c.pidD.Integral != 0 {
		t.Errorf("Expected current loops reset on entry, got %v / %v", r.c.pidD.Integral, r.c.pidQ.Integral)
	}
}

func TestBumplessCurrentToSpeed(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.sensor.speed = 500
	r.enter(t, ModeCurrentClosedLoop)

	r.run(50, quiet)
	before := r.c.vdq
	integral := r.c.pidQ.Integral

	if err := r.c.AdvanceMode(); err != nil {
		t.Fatalf("AdvanceMode failed: %v", err)
	}
	if r.c.pidQ.Integral != integral {
		t.Errorf("Expected current loop state kept across the switch")
	}
	if r.c.pidSpeed.Output != 0.5 || r.c.pidSpeed.Integral != 0.5 {
		t.Errorf("Expected speed PID preloaded with 0.5 A, got output %v integral %v",
			r.c.pidSpeed.Output, r.c.pidSpeed.Integral)
	}
	if r.c.ramp.Value() != 500 {
		t.Errorf("Expected ramp to start at measured speed, got %v", r.c.ramp.Value())
	}

	r.run(1, quiet)
	after := r.c.vdq
	const eps = 0.01
	if foc.Abs(after.D-before.D) > eps || foc.Abs(after.Q-before.Q) > eps {
		t.Errorf("Expected bumpless transfer, voltage went from %+v to %+v", before, after)
	}
	if d := foc.Abs(r.c.iqRef - 0.5); d > 0.02 {
		t.Errorf("Expected q reference near 0.5 A after the switch, got %v", r.c.iqRef)
	}
	t.Logf("v before=%+v after=%+v iqRef=%v", before, after, r.c.iqRef)
}

func TestSpeedLoopDecimation(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.enter(t, ModeSpeedClosedLoop)

	r.run(100, quiet)
	if v := r.c.ramp.Value(); v != 10 {
		t.Errorf("Expected 10 ramp steps in 100 cycles, got %v", v)
	}
}

func TestSpeedTargetChangeRamps(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.sensor.speed = 1000
	r.c.SetTargetSpeed(1000)
	r.enter(t, ModeSpeedClosedLoop)
	r.run(10, quiet)

	r.c.SetTargetSpeed(1500)
	prev := r.c.ramp.Value()
	for i := 0; i < 100; i++ {
		r.run(10, quiet)
		v := r.c.ramp.Value()
		if v < prev || v-prev > 1 {
			t.Fatalf("Expected monotonic ramp with step 1, went %v -> %v", prev, v)
		}
		prev = v
	}
	if prev != 1100 {
		t.Errorf("Expected ramp at 1100 after 100 ticks, got %v", prev)
	}
}

func TestAutoIdleAtStandstill(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.sensor.speed = 5
	r.c.SetTargetSpeed(0)
	r.enter(t, ModeSpeedClosedLoop)

	r.run(60, quiet)
	if r.c.Mode() != ModeIdle {
		t.Fatalf("Expected automatic idle at standstill, got %v", r.c.Mode())
	}
	if r.pwm.last != foc.ZeroDuty {
		t.Errorf("Expected zero vector after auto idle, got %+v", r.pwm.last)
	}
}

func TestNoAutoIdleWhileSpinning(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.sensor.speed = 800
	r.c.SetTargetSpeed(0)
	r.enter(t, ModeSpeedClosedLoop)

	r.run(20000, quiet)
	if r.c.Mode() != ModeSpeedClosedLoop {
		t.Errorf("Expected speed loop to hold while the rotor spins, got %v", r.c.Mode())
	}
}

func TestStopForcesZeroDuty(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.enter(t, ModeCurrentClosedLoop)
	r.run(20, quiet)
	if r.pwm.last == foc.ZeroDuty {
		t.Fatal("Expected an active vector before stop")
	}

	r.c.Stop()
	if r.c.Mode() != ModeIdle {
		t.Errorf("Expected idle after stop, got %v", r.c.Mode())
	}
	if r.pwm.last != foc.ZeroDuty {
		t.Errorf("Expected zero vector after stop, got %+v", r.pwm.last)
	}
	if r.c.pidQ.Integral != 0 || r.c.vdq != (foc.DQ{}) {
		t.Errorf("Expected loop state cleared after stop")
	}

	r.run(5, quiet)
	if r.pwm.last != foc.ZeroDuty {
		t.Errorf("Expected zero vector while idle, got %+v", r.pwm.last)
	}
}

func TestSetTargetCurrentsUsedByCurrentLoop(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.enter(t, ModeCurrentClosedLoop)
	r.c.SetTargetCurrents(-0.2, 1.0)
	r.run(1, quiet)
	if r.c.idRef != -0.2 || r.c.iqRef != 1.0 {
		t.Errorf("Expected references -0.2/1.0, got %v/%v", r.c.idRef, r.c.iqRef)
	}
}

func TestSetAngleSource(t *testing.T) {
	r := newTestRig(t, testSettings())
	if err := r.c.SetAngleSource(AngleFromObserver); err != ErrNoObserver {
		t.Errorf("Expected ErrNoObserver, got %v", err)
	}

	obs := &fakeObserver{}
	c, err := NewController(testSettings(), Hardware{PWM: &fakePWM{}, Sensor: &fakeSensor{}, Observer: obs})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := c.SetAngleSource(AngleFromObserver); err != nil {
		t.Fatalf("SetAngleSource failed: %v", err)
	}
	if err := c.AdvanceMode(); err != nil {
		t.Fatal(err)
	}
	if err := c.AdvanceMode(); err != nil {
		t.Fatalf("Expected observer current loop without alignment, got %v", err)
	}
	if err := c.SetAngleSource(AngleFromSensor); err != ErrNotIdle {
		t.Errorf("Expected ErrNotIdle in closed loop, got %v", err)
	}
}

func TestObserverFedEveryRunningCycle(t *testing.T) {
	obs := &fakeObserver{}
	c, _ := NewController(testSettings(), Hardware{PWM: &fakePWM{}, Sensor: &fakeSensor{}, Observer: obs})
	c.RunCycle(quiet)
	if obs.steps != 0 {
		t.Errorf("Expected observer idle while the controller is idle")
	}
	c.AdvanceMode()
	if obs.resets != 1 {
		t.Errorf("Expected observer reset on open-loop entry, got %d", obs.resets)
	}
	for i := 0; i < 10; i++ {
		c.RunCycle(quiet)
	}
	if obs.steps != 10 {
		t.Errorf("Expected 10 observer steps, got %d", obs.steps)
	}
}

func TestObserverHandoff(t *testing.T) {
	cfg := testSettings()
	cfg.AngleSource = AngleFromObserver
	cfg.Handoff = HandoffSettings{Auto: true, WindowRPM: 50, Cycles: 20}
	cfg.OpenLoop.Current = 0.4
	obs := &fakeObserver{speed: 30}
	pwm := &fakePWM{}
	c, err := NewController(cfg, Hardware{PWM: pwm, Observer: obs})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	c.AdvanceMode()

	for i := 0; i < 100; i++ {
		c.RunCycle(quiet)
	}
	if c.Mode() != ModeOpenLoop {
		t.Fatalf("Expected no handoff while the observer disagrees, got %v", c.Mode())
	}

	obs.speed = 90
	for i := 0; i < 19; i++ {
		c.RunCycle(quiet)
	}
	if c.Mode() != ModeOpenLoop {
		t.Fatalf("Expected handoff to wait for the lock window")
	}
	c.RunCycle(quiet)
	if c.Mode() != ModeSpeedClosedLoop {
		t.Fatalf("Expected handoff to speed loop, got %v", c.Mode())
	}
	if c.pidSpeed.Integral != 0.4 {
		t.Errorf("Expected speed PID preloaded with the startup current, got %v", c.pidSpeed.Integral)
	}
	if c.ramp.Value() != 90 {
		t.Errorf("Expected ramp to start at observer speed, got %v", c.ramp.Value())
	}
}

func TestOverrunDetected(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.c.inCycle.Store(true)
	cycles := r.c.cycles
	r.c.RunCycle(quiet)
	if r.c.Overruns() != 1 {
		t.Errorf("Expected 1 overrun, got %d", r.c.Overruns())
	}
	if r.c.cycles != cycles {
		t.Errorf("Expected the overlapping cycle to be dropped")
	}
}

func countOverrunEvents() int {
	n := 0
	for _, evt := range TimingEvents() {
		if evt.EventType == EvtOverrun {
			n++
		}
	}
	return n
}

func TestOverrunRecordedByNextCycle(t *testing.T) {
	ClearTimingRing()
	r := newTestRig(t, testSettings())

	r.c.inCycle.Store(true)
	r.c.RunCycle(quiet)
	r.c.RunCycle(quiet)
	if n := countOverrunEvents(); n != 0 {
		t.Errorf("Expected no event while the cycle is still running, got %d", n)
	}

	r.c.inCycle.Store(false)
	r.c.RunCycle(quiet)
	r.c.RunCycle(quiet)
	if n := countOverrunEvents(); n != 1 {
		t.Fatalf("Expected one overrun event, got %d", n)
	}
	for _, evt := range TimingEvents() {
		if evt.EventType == EvtOverrun && evt.Value1 != 2 {
			t.Errorf("Expected the event to carry 2 overruns, got %d", evt.Value1)
		}
	}
}

func TestSnapshot(t *testing.T) {
	r := newTestRig(t, testSettings())
	r.sensor.speed = 250
	r.enter(t, ModeCurrentClosedLoop)
	r.run(3, quiet)

	s := r.c.Snapshot()
	if s.Mode != ModeCurrentClosedLoop || !s.Aligned {
		t.Errorf("Unexpected mode/aligned in snapshot: %+v", s)
	}
	if s.Speed != 250 || s.Cycles != 3 {
		t.Errorf("Expected speed 250 and 3 cycles, got %v / %d", s.Speed, s.Cycles)
	}
	if s.CurrentRef.Q != 0.5 || s.BusVoltage != 12 {
		t.Errorf("Unexpected references in snapshot: %+v", s)
	}
}

func TestModeStrings(t *testing.T) {
	if ModeSpeedClosedLoop.String() != "speed_loop" || FaultEncoder.String() != "encoder" {
		t.Errorf("Unexpected names %q %q", ModeSpeedClosedLoop, FaultEncoder)
	}
	if Mode(42).String() != "mode(42)" {
		t.Errorf("Expected numeric fallback, got %q", Mode(42).String())
	}
	if src, ok := ParseAngleSource("sensorless"); !ok || src != AngleFromObserver {
		t.Errorf("Expected sensorless to parse as observer")
	}
}
