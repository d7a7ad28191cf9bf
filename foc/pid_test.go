package foc

import "testing"

func TestPIDInitDefaults(t *testing.T) {
	p := NewPID(1, 0.1, 0, -3, 3)
	if p.IntegralMax != 3 {
		t.Errorf("Expected IntegralMax 3, got %v", p.IntegralMax)
	}
	if p.Integral != 0 || p.Output != 0 || p.Error != 0 || p.PrevError != 0 {
		t.Errorf("Expected zeroed state, got %+v", p)
	}
}

func TestPIDProportionalOnly(t *testing.T) {
	p := NewPID(2, 0, 0, -10, 10)
	if out := p.Calculate(3, 1); out != 4 {
		t.Errorf("Expected 4, got %v", out)
	}
}

func TestPIDDerivativeOnErrorDifference(t *testing.T) {
	p := NewPID(0, 0, 0.5, -10, 10)
	p.Calculate(2, 0) // error 2, previous 0
	if p.Output != 1 {
		t.Errorf("Expected derivative 1, got %v", p.Output)
	}
	p.Calculate(2, 0) // error unchanged
	if p.Output != 0 {
		t.Errorf("Expected derivative 0, got %v", p.Output)
	}
}

func TestPIDClampInvariant(t *testing.T) {
	p := NewPID(0.8, 0.3, 0.05, -2, 1.5)
	inputs := []struct{ sp, fb float32 }{
		{100, 0}, {100, 0}, {-50, 3}, {0, 0}, {7, -7}, {-1000, 1000}, {3, 2.5},
	}
	for cycle := 0; cycle < 200; cycle++ {
		in := inputs[cycle%len(inputs)]
		out := p.Calculate(in.sp, in.fb)
		if out < p.OutMin || out > p.OutMax {
			t.Fatalf("cycle %d: output %v outside [%v, %v]", cycle, out, p.OutMin, p.OutMax)
		}
		if p.Integral > p.IntegralMax || p.Integral < -p.IntegralMax {
			t.Fatalf("cycle %d: integral %v exceeds ±%v", cycle, p.Integral, p.IntegralMax)
		}
	}
}

func TestPIDAntiWindup(t *testing.T) {
	p := NewPID(0.5, 0.1, 0, -1, 1)

	// large positive error saturates the output
	for i := 0; i < 10; i++ {
		p.Calculate(10, 0)
	}
	if p.Output != 1 {
		t.Fatalf("Expected saturated output 1, got %v", p.Output)
	}
	frozen := p.Integral
	for i := 0; i < 1000; i++ {
		p.Calculate(10, 0)
		if p.Integral > frozen {
			t.Fatalf("integral kept growing while saturated: %v > %v", p.Integral, frozen)
		}
	}

	// reversing the error must leave saturation quickly
	left := -1
	for i := 0; i < 20; i++ {
		if p.Calculate(-1, 0) < 1 {
			left = i
			break
		}
	}
	if left < 0 {
		t.Errorf("output stayed saturated after error reversal")
	}
	t.Logf("left saturation after %d cycles", left+1)
}

func TestPIDIntegratesInsideLinearRange(t *testing.T) {
	p := NewPID(0, 0.1, 0, -10, 10)
	for i := 0; i < 5; i++ {
		p.Calculate(1, 0)
	}
	if !near(p.Integral, 0.5, 1e-6) {
		t.Errorf("Expected integral 0.5, got %v", p.Integral)
	}
}

func TestPIDIntegralMaxOverride(t *testing.T) {
	p := NewPID(0, 1, 0, -10, 10)
	p.SetIntegralMax(0.25)
	for i := 0; i < 10; i++ {
		p.Calculate(1, 0)
	}
	if p.Integral != 0.25 {
		t.Errorf("Expected integral clamped to 0.25, got %v", p.Integral)
	}
}

func TestPIDReset(t *testing.T) {
	p := NewPID(1, 1, 1, -5, 5)
	p.Calculate(2, 0)
	p.Reset()
	if p.Integral != 0 || p.Output != 0 || p.Error != 0 || p.PrevError != 0 {
		t.Errorf("Expected zeroed state after reset, got %+v", p)
	}
}

func TestPIDPreload(t *testing.T) {
	p := NewPID(0.01, 0.00002, 0, -1, 1)
	p.Preload(0.5)
	if p.Integral != 0.5 || p.Output != 0.5 {
		t.Errorf("Expected integral and output 0.5, got %v / %v", p.Integral, p.Output)
	}
	// zero error keeps the output where it was seeded
	if out := p.Calculate(1000, 1000); out != 0.5 {
		t.Errorf("Expected 0.5 after preload, got %v", out)
	}
}

func TestPIAsymmetricLimits(t *testing.T) {
	// output confined to [-2, 0], as the flux-weakening loop uses it
	p := NewPID(0, 0.5, 0, -2, 0)
	if p.IntegralMax != 2 {
		t.Fatalf("Expected IntegralMax 2, got %v", p.IntegralMax)
	}
	for i := 0; i < 100; i++ {
		p.Calculate(0, 1)
	}
	if p.Output != -2 {
		t.Errorf("Expected output -2, got %v", p.Output)
	}
}
