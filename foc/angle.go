package foc

import "math"

const (
	Pi    = float32(math.Pi)
	TwoPi = float32(2 * math.Pi)

	Sqrt3        = float32(1.7320508075688772)
	InvSqrt3     = float32(0.5773502691896258)
	Sqrt3Over2   = float32(0.8660254037844386)
	rpmPerRadSec = float32(60 / (2 * math.Pi))
)

// WrapAngle normalizes an angle in radians into [0, 2π).
func WrapAngle(theta float32) float32 {
	if theta >= 0 && theta < TwoPi {
		return theta
	}
	w := float32(math.Mod(float64(theta), 2*math.Pi))
	if w < 0 {
		w += TwoPi
	}
	// float32 rounding can land exactly on 2π
	if w >= TwoPi {
		w = 0
	}
	return w
}

// WrapDelta normalizes an angle difference into [-π, π).
func WrapDelta(delta float32) float32 {
	d := WrapAngle(delta + Pi)
	return d - Pi
}

// SinCos returns sin(θ) and cos(θ) from a single evaluation.
func SinCos(theta float32) (sin, cos float32) {
	s, c := math.Sincos(float64(theta))
	return float32(s), float32(c)
}

// Atan returns the arctangent of x.
func Atan(x float32) float32 {
	return float32(math.Atan(float64(x)))
}

// Atan2 returns the angle of the vector (x, y).
func Atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// RPMToElectrical converts mechanical RPM to electrical rad/s.
func RPMToElectrical(rpm float32, polePairs int) float32 {
	return rpm * float32(polePairs) / rpmPerRadSec
}

// ElectricalToRPM converts electrical rad/s to mechanical RPM.
func ElectricalToRPM(omega float32, polePairs int) float32 {
	if polePairs <= 0 {
		return 0
	}
	return omega * rpmPerRadSec / float32(polePairs)
}

// ElectricalAngle converts a mechanical angle to a wrapped electrical angle,
// subtracting the alignment offset.
func ElectricalAngle(mechanical float32, polePairs int, offset float32) float32 {
	return WrapAngle(mechanical*float32(polePairs) - offset)
}
