package foc

// Duty convention for the whole pipeline: each phase duty is the fraction of
// the PWM period the high-side switch is on, in [0, 1], with the carrier
// center-aligned. 0.5 on all three phases is the zero vector. Every PWM sink
// consumes this convention unchanged.

// boundary sin/cos of the six sector edges, k·π/3 for k = 0..6
var (
	sectorSin = [7]float32{0, Sqrt3Over2, Sqrt3Over2, 0, -Sqrt3Over2, -Sqrt3Over2, 0}
	sectorCos = [7]float32{1, 0.5, -0.5, -1, -0.5, 0.5, 1}
)

// sign pattern (β>0) + 2(right axis>0) + 4(left axis>0) -> sector 1..6
var sectorFromPattern = [8]uint8{0, 2, 6, 1, 4, 3, 5, 0}

// Sector returns the SVPWM sector (1..6) of v, or 0 for the zero vector.
func Sector(v AlphaBeta) uint8 {
	var n uint8
	if v.Beta > 0 {
		n |= 1
	}
	if Sqrt3Over2*v.Alpha-0.5*v.Beta > 0 {
		n |= 2
	}
	if -Sqrt3Over2*v.Alpha-0.5*v.Beta > 0 {
		n |= 4
	}
	return sectorFromPattern[n]
}

// SVPWM converts a stationary-frame voltage command (volts) into three duty
// cycles for a DC bus of vdc volts.
//
// The two active-vector dwell times of the sector are clipped so their sum
// never exceeds one period, the remaining time is split evenly between the two
// zero vectors, and each duty is clamped to [0, 1] as a final guard. The
// linear range ends at |v| = vdc/√3.
func SVPWM(v AlphaBeta, vdc float32) Duty {
	if vdc <= 0 {
		return ZeroDuty
	}
	sector := Sector(v)
	if sector == 0 {
		return ZeroDuty
	}

	k := Sqrt3 / vdc
	t1 := k * (sectorSin[sector]*v.Alpha - sectorCos[sector]*v.Beta)
	t2 := k * (sectorCos[sector-1]*v.Beta - sectorSin[sector-1]*v.Alpha)
	if t1 < 0 {
		t1 = 0
	}
	if t2 < 0 {
		t2 = 0
	}
	if sum := t1 + t2; sum > 1 {
		t1 /= sum
		t2 /= sum
	}
	h := (1 - t1 - t2) / 2

	var d Duty
	switch sector {
	case 1:
		d = Duty{A: t1 + t2 + h, B: t2 + h, C: h}
	case 2:
		d = Duty{A: t1 + h, B: t1 + t2 + h, C: h}
	case 3:
		d = Duty{A: h, B: t1 + t2 + h, C: t2 + h}
	case 4:
		d = Duty{A: h, B: t1 + h, C: t1 + t2 + h}
	case 5:
		d = Duty{A: t2 + h, B: h, C: t1 + t2 + h}
	default:
		d = Duty{A: t1 + t2 + h, B: h, C: t1 + h}
	}
	return d.Clamp()
}

// MaxLinearVoltage is the largest voltage vector magnitude SVPWM reproduces
// without distortion.
func MaxLinearVoltage(vdc float32) float32 {
	return vdc * InvSqrt3
}
