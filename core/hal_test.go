package core

import (
	"testing"
	"time"

	"gofoc/foc"
)

type fakePWM struct {
	last   foc.Duty
	writes int
}

func (p *fakePWM) SetDuty(d foc.Duty) {
	p.last = d
	p.writes++
}

type fakeSensor struct {
	angle   float32 // mechanical radians
	speed   float32
	err     error
	updates int
}

func (s *fakeSensor) Update() error {
	s.updates++
	return s.err
}

func (s *fakeSensor) MechanicalAngle() float32 { return s.angle }
func (s *fakeSensor) SpeedRPM() float32        { return s.speed }
func (s *fakeSensor) RawSpeedRPM() float32     { return s.speed }

type fakeCurrents struct {
	raw     foc.ABC
	offsets foc.ABC
}

func (f *fakeCurrents) ReadCurrents() CurrentSample {
	return CurrentSample{Phase: foc.ABC{
		A: f.raw.A - f.offsets.A,
		B: f.raw.B - f.offsets.B,
		C: f.raw.C - f.offsets.C,
	}}
}

func (f *fakeCurrents) SetCurrentOffsets(o foc.ABC) { f.offsets = o }

type fakeObserver struct {
	angle  float32
	speed  float32
	steps  int
	resets int
}

func (o *fakeObserver) Estimate(i, u foc.AlphaBeta) { o.steps++ }
func (o *fakeObserver) Angle() float32              { return o.angle }
func (o *fakeObserver) SpeedRPM() float32           { return o.speed }
func (o *fakeObserver) RawSpeedRPM() float32        { return o.speed }
func (o *fakeObserver) EMF() foc.AlphaBeta          { return foc.AlphaBeta{} }
func (o *fakeObserver) Reset()                      { o.resets++ }

func testSettings() Settings {
	return Settings{
		PolePairs:        7,
		Ts:               1e-4,
		BusVoltage:       12,
		SpeedDivider:     10,
		Current:          PIDGains{Kp: 0.017, Ki: 0.0002826, Limit: 3},
		Speed:            PIDGains{Kp: 0.01, Ki: 2e-5, Limit: 1},
		RampStep:         1,
		StopThresholdRPM: 20,
		TargetIQ:         0.5,
		TargetSpeed:      3000,
		SensorDirection:  1,
		OpenLoop:         OpenLoopSettings{SpeedRPM: 100, Voltage: 1},
		Alignment: AlignmentSettings{
			Voltage:      0.5,
			Steps:        10,
			StepDelay:    time.Millisecond,
			Settle:       10 * time.Millisecond,
			Samples:      8,
			PolarityStep: foc.Pi / 2,
			MinMovement:  0.3,
		},
		Protection: ProtectionSettings{
			Enabled:           true,
			RatedCurrent:      2,
			RatedVoltage:      12,
			OverCurrentRatio:  1.5,
			OverVoltageRatio:  1.2,
			UnderVoltageRatio: 0.5,
			StaleAngleCycles:  5,
		},
	}
}

type testRig struct {
	c      *Controller
	pwm    *fakePWM
	sensor *fakeSensor
	slept  time.Duration
}

func newTestRig(t *testing.T, cfg Settings) *testRig {
	t.Helper()
	r := &testRig{pwm: &fakePWM{}, sensor: &fakeSensor{}}
	c, err := NewController(cfg, Hardware{
		PWM:    r.pwm,
		Sensor: r.sensor,
		Sleep:  func(d time.Duration) { r.slept += d },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	r.c = c
	return r
}

// quiet is a balanced sample with no q current at angle zero.
var quiet = CurrentSample{Phase: foc.ABC{A: 0.1, B: -0.05, C: -0.05}}

func (r *testRig) run(n int, s CurrentSample) {
	for i := 0; i < n; i++ {
		r.c.RunCycle(s)
	}
}

// enter drives the controller from Idle to the requested mode with a valid
// offset.
func (r *testRig) enter(t *testing.T, m Mode) {
	t.Helper()
	if err := r.c.SetOffset(0, 1); err != nil {
		t.Fatalf("SetOffset failed: %v", err)
	}
	for r.c.Mode() != m {
		if err := r.c.AdvanceMode(); err != nil {
			t.Fatalf("AdvanceMode from %v failed: %v", r.c.Mode(), err)
		}
	}
}
