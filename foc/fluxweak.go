package foc

// FluxWeakening trims the d-axis current target negative when the commanded
// voltage vector approaches the linear modulation limit. It is a pure
// integral loop on the filtered |v_dq| against Ratio·Vdc/√3 with output in
// [idMin, 0].
type FluxWeakening struct {
	Ratio float32

	pid      PID
	vFilter  LowPass
	idTarget float32
}

// NewFluxWeakening returns a flux-weakening layer. idMin is the most negative
// d-axis current it may request; ratio is the fraction of the linear
// voltage limit the loop holds |v_dq| under (0.90-0.95 typical).
func NewFluxWeakening(ki, idMin, ratio float32) *FluxWeakening {
	if idMin > 0 {
		idMin = -idMin
	}
	fw := &FluxWeakening{Ratio: ratio}
	fw.pid.Init(0, ki, 0, idMin, 0)
	fw.vFilter.Alpha = 0.02
	return fw
}

// Update feeds the latest voltage command and returns the d-axis current trim.
func (fw *FluxWeakening) Update(v DQ, vdc float32) float32 {
	magnitude := fw.vFilter.Update(v.Magnitude())
	fw.idTarget = fw.pid.Calculate(MaxLinearVoltage(vdc)*fw.Ratio, magnitude)
	return fw.idTarget
}

// IDTarget returns the last computed trim.
func (fw *FluxWeakening) IDTarget() float32 {
	return fw.idTarget
}

// Reset clears the loop state.
func (fw *FluxWeakening) Reset() {
	fw.pid.Reset()
	fw.vFilter.Reset(0)
	fw.idTarget = 0
}
