package foc

// Clark converts balanced three-phase currents to the stationary frame.
// Only A and B are used; C is implied by Kirchhoff's law.
func Clark(i ABC) AlphaBeta {
	return AlphaBeta{
		Alpha: i.A,
		Beta:  (i.A + 2*i.B) * InvSqrt3,
	}
}

// InverseClark converts a stationary-frame vector back to three phases.
func InverseClark(v AlphaBeta) ABC {
	a := v.Alpha
	b := -0.5*v.Alpha + Sqrt3Over2*v.Beta
	return ABC{A: a, B: b, C: -a - b}
}

// Park rotates a stationary vector into the dq frame at electrical angle theta.
func Park(v AlphaBeta, theta float32) DQ {
	s, c := SinCos(theta)
	return DQ{
		D: v.Alpha*c + v.Beta*s,
		Q: -v.Alpha*s + v.Beta*c,
	}
}

// InversePark rotates a dq vector back into the stationary frame.
func InversePark(v DQ, theta float32) AlphaBeta {
	s, c := SinCos(theta)
	return AlphaBeta{
		Alpha: v.D*c - v.Q*s,
		Beta:  v.D*s + v.Q*c,
	}
}
