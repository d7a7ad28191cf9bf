package foc

// LowPass is a first-order IIR filter: y += Alpha·(x - y).
type LowPass struct {
	Alpha float32
	y     float32
}

// NewLowPass returns a filter with smoothing factor alpha in (0, 1].
func NewLowPass(alpha float32) *LowPass {
	return &LowPass{Alpha: Clamp(alpha, 0, 1)}
}

// Update feeds one sample and returns the filtered value.
func (f *LowPass) Update(x float32) float32 {
	f.y += f.Alpha * (x - f.y)
	return f.y
}

// Reset forces the filter output to v.
func (f *LowPass) Reset(v float32) {
	f.y = v
}

// Value returns the last filtered value.
func (f *LowPass) Value() float32 {
	return f.y
}

// LowPassAlpha returns the smoothing factor of a first-order filter with
// cutoff fc (Hz) sampled every ts seconds.
func LowPassAlpha(fc, ts float32) float32 {
	if fc <= 0 || ts <= 0 {
		return 1
	}
	rc := 1 / (TwoPi * fc)
	return ts / (rc + ts)
}
