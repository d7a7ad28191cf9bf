package foc

import (
	"math"
	"testing"
)

// minMaxDuty is the zero-sequence (min-max injection) modulator. It is only
// kept here to cross-check the sector implementation.
func minMaxDuty(v AlphaBeta, vdc float32) Duty {
	p := InverseClark(v)
	hi, lo := p.A, p.A
	for _, x := range []float32{p.B, p.C} {
		if x > hi {
			hi = x
		}
		if x < lo {
			lo = x
		}
	}
	offset := -(hi + lo) / 2
	d := Duty{
		A: 0.5 + (p.A+offset)/vdc,
		B: 0.5 + (p.B+offset)/vdc,
		C: 0.5 + (p.C+offset)/vdc,
	}
	return d.Clamp()
}

func TestSVPWMZeroVector(t *testing.T) {
	for _, vdc := range []float32{5, 12, 13.5, 48} {
		d := SVPWM(AlphaBeta{}, vdc)
		if d != ZeroDuty {
			t.Errorf("vdc=%v: expected %+v, got %+v", vdc, ZeroDuty, d)
		}
	}
}

func TestSVPWMInvalidBus(t *testing.T) {
	if d := SVPWM(AlphaBeta{Alpha: 3, Beta: 1}, 0); d != ZeroDuty {
		t.Errorf("Expected zero duty for vdc=0, got %+v", d)
	}
}

func TestSectorPattern(t *testing.T) {
	for sector := 1; sector <= 6; sector++ {
		// middle of each sector
		theta := (float32(sector) - 0.5) * Pi / 3
		s, c := SinCos(theta)
		if got := Sector(AlphaBeta{Alpha: c, Beta: s}); int(got) != sector {
			t.Errorf("theta=%.3f: expected sector %d, got %d", theta, sector, got)
		}
	}
}

func TestSVPWMMatchesMinMaxInLinearRange(t *testing.T) {
	const vdc = 13.5
	maxLinear := MaxLinearVoltage(vdc)
	for _, scale := range []float32{0.1, 0.5, 0.9, 0.999} {
		for i := 0; i < 360; i += 7 {
			theta := float32(i) * Pi / 180
			s, c := SinCos(theta)
			v := AlphaBeta{Alpha: scale * maxLinear * c, Beta: scale * maxLinear * s}

			got := SVPWM(v, vdc)
			want := minMaxDuty(v, vdc)
			if !near(got.A, want.A, 1e-4) || !near(got.B, want.B, 1e-4) || !near(got.C, want.C, 1e-4) {
				t.Errorf("scale=%v theta=%d°: sector %+v, min-max %+v", scale, i, got, want)
			}
		}
	}
}

func TestSVPWMOvermodulationBounded(t *testing.T) {
	const vdc = 12
	for _, magnitude := range []float32{7, 10, 50, 1e4} {
		for i := 0; i < 360; i += 3 {
			theta := float32(i) * Pi / 180
			s, c := SinCos(theta)
			d := SVPWM(AlphaBeta{Alpha: magnitude * c, Beta: magnitude * s}, vdc)
			for _, x := range []float32{d.A, d.B, d.C} {
				if math.IsNaN(float64(x)) || x < 0 || x > 1 {
					t.Fatalf("|v|=%v theta=%d°: duty out of range %+v", magnitude, i, d)
				}
			}
		}
	}
}

func TestSVPWMOvermodulationKeepsDirection(t *testing.T) {
	// a saturated vector is scaled onto the hexagon edge, not distorted
	// into another direction
	const vdc = 10
	theta := float32(0.3)
	s, c := SinCos(theta)
	d := SVPWM(AlphaBeta{Alpha: 100 * c, Beta: 100 * s}, vdc)

	mean := (d.A + d.B + d.C) / 3
	phase := ABC{A: (d.A - mean) * vdc, B: (d.B - mean) * vdc, C: (d.C - mean) * vdc}
	v := Clark(phase)
	got := Atan2(v.Beta, v.Alpha)
	if !near(got, theta, 1e-3) {
		t.Errorf("Expected output angle %v, got %v", theta, got)
	}
}

func TestSVPWMCommonModeCentered(t *testing.T) {
	v := AlphaBeta{Alpha: 2, Beta: -1}
	d := SVPWM(v, 24)
	hi := float32(math.Max(float64(d.A), math.Max(float64(d.B), float64(d.C))))
	lo := float32(math.Min(float64(d.A), math.Min(float64(d.B), float64(d.C))))
	if !near(hi+lo, 1, 1e-5) {
		t.Errorf("Expected zero vectors split evenly (max+min=1), got max=%v min=%v", hi, lo)
	}
}
