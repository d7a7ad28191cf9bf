package foc

import (
	"math"
	"testing"
)

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestClarkScenario(t *testing.T) {
	tests := []struct {
		name  string
		in    ABC
		alpha float32
		beta  float32
	}{
		// amplitude-invariant form: beta = (a + 2b)/√3, zero for this input
		{"balanced", ABC{A: 1.0, B: -0.5, C: -0.5}, 1.0, 0.0},
		// with b = 0 the whole of a/√3 lands on the beta axis
		{"b zero", ABC{A: 1.0, B: 0, C: -1.0}, 1.0, 0.577},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clark(tt.in)
			if !near(got.Alpha, tt.alpha, 1e-3) || !near(got.Beta, tt.beta, 1e-3) {
				t.Errorf("Expected {%v, %v}, got %+v", tt.alpha, tt.beta, got)
			}
		})
	}
}

func TestInverseClarkRoundTrip(t *testing.T) {
	cases := []ABC{
		{A: 1, B: -0.5, C: -0.5},
		{A: 0, B: 0.866, C: -0.866},
		{A: -2.3, B: 1.1, C: 1.2},
		{A: 0, B: 0, C: 0},
	}
	for _, in := range cases {
		out := InverseClark(Clark(in))
		if !near(out.A, in.A, 1e-4) || !near(out.B, in.B, 1e-4) || !near(out.C, in.C, 1e-4) {
			t.Errorf("InverseClark(Clark(%+v)) = %+v", in, out)
		}
	}
}

func TestParkRoundTrip(t *testing.T) {
	vectors := []ABC{
		{A: 1, B: -0.5, C: -0.5},
		{A: 0.3, B: 0.4, C: -0.7},
		{A: -5, B: 2, C: 3},
	}
	for _, abc := range vectors {
		ab := Clark(abc)
		for i := 0; i < 64; i++ {
			theta := TwoPi * float32(i) / 64
			back := InversePark(Park(ab, theta), theta)
			if !near(back.Alpha, ab.Alpha, 1e-4) || !near(back.Beta, ab.Beta, 1e-4) {
				t.Errorf("theta=%.3f: expected %+v, got %+v", theta, ab, back)
			}
		}
	}
}

func TestParkAlignedVector(t *testing.T) {
	// a vector lying on the rotor axis has no q component
	theta := float32(1.1)
	s, c := SinCos(theta)
	dq := Park(AlphaBeta{Alpha: 2 * c, Beta: 2 * s}, theta)
	if !near(dq.D, 2, 1e-4) || !near(dq.Q, 0, 1e-4) {
		t.Errorf("Expected {2, 0}, got %+v", dq)
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, 0},
		{1, 1},
		{TwoPi, 0},
		{-0.5, TwoPi - 0.5},
		{3*TwoPi + 0.25, 0.25},
		{-3*TwoPi - 0.25, TwoPi - 0.25},
	}
	for _, tt := range tests {
		got := WrapAngle(tt.in)
		if !near(got, tt.want, 1e-4) {
			t.Errorf("WrapAngle(%v): expected %v, got %v", tt.in, tt.want, got)
		}
		if got < 0 || got >= TwoPi {
			t.Errorf("WrapAngle(%v) = %v outside [0, 2π)", tt.in, got)
		}
	}
}

func TestWrapDelta(t *testing.T) {
	if d := WrapDelta(TwoPi - 0.1); !near(d, -0.1, 1e-4) {
		t.Errorf("Expected -0.1, got %v", d)
	}
	if d := WrapDelta(0.2); !near(d, 0.2, 1e-4) {
		t.Errorf("Expected 0.2, got %v", d)
	}
}

func TestSpeedConversions(t *testing.T) {
	omega := RPMToElectrical(1000, 7)
	if !near(omega, 733.038, 1e-2) {
		t.Errorf("Expected 733.038 rad/s, got %v", omega)
	}
	if rpm := ElectricalToRPM(omega, 7); !near(rpm, 1000, 1e-2) {
		t.Errorf("Expected 1000 rpm, got %v", rpm)
	}
}
