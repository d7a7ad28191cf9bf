package foc

// PID is a positional PID controller with output clamping and conditional
// integration. With Kd = 0 it is the PI filter used by the observer PLLs.
//
// A PID belongs to exactly one control axis and is only touched by the
// context that runs that axis.
type PID struct {
	Kp, Ki, Kd float32

	Error     float32
	PrevError float32
	Integral  float32
	Output    float32

	OutMin, OutMax float32
	IntegralMax    float32
}

// NewPID returns an initialized controller.
func NewPID(kp, ki, kd, outMin, outMax float32) *PID {
	p := &PID{}
	p.Init(kp, ki, kd, outMin, outMax)
	return p
}

// Init sets gains and limits and zeroes all state. The integral clamp
// defaults to the output clamp magnitude.
func (p *PID) Init(kp, ki, kd, outMin, outMax float32) {
	p.Kp, p.Ki, p.Kd = kp, ki, kd
	p.OutMin, p.OutMax = outMin, outMax
	p.IntegralMax = outMax
	if -outMin > p.IntegralMax {
		p.IntegralMax = -outMin
	}
	p.Reset()
}

// Calculate runs one step and returns the clamped output.
func (p *PID) Calculate(setpoint, feedback float32) float32 {
	p.Error = setpoint - feedback

	proportional := p.Kp * p.Error
	derivative := p.Kd * (p.Error - p.PrevError)
	unclamped := proportional + p.Integral + derivative

	// integrate only when it cannot deepen an existing saturation
	switch {
	case unclamped > p.OutMin && unclamped < p.OutMax:
		p.Integral += p.Ki * p.Error
	case unclamped >= p.OutMax && p.Error < 0:
		p.Integral += p.Ki * p.Error
	case unclamped <= p.OutMin && p.Error > 0:
		p.Integral += p.Ki * p.Error
	}
	p.Integral = Clamp(p.Integral, -p.IntegralMax, p.IntegralMax)

	p.Output = Clamp(proportional+p.Integral+derivative, p.OutMin, p.OutMax)
	p.PrevError = p.Error
	return p.Output
}

// Reset clears error history, integral and output.
func (p *PID) Reset() {
	p.Error = 0
	p.PrevError = 0
	p.Integral = 0
	p.Output = 0
}

// Preload seeds the integral and output with value and clears the error
// history, so the next Calculate continues from value instead of zero.
func (p *PID) Preload(value float32) {
	value = Clamp(value, p.OutMin, p.OutMax)
	p.Integral = Clamp(value, -p.IntegralMax, p.IntegralMax)
	p.Output = value
	p.Error = 0
	p.PrevError = 0
}

// SetGains changes the gains without touching state.
func (p *PID) SetGains(kp, ki, kd float32) {
	p.Kp, p.Ki, p.Kd = kp, ki, kd
}

// SetLimits changes the output clamp. The integral clamp follows it.
func (p *PID) SetLimits(outMin, outMax float32) {
	p.OutMin, p.OutMax = outMin, outMax
	p.IntegralMax = outMax
	if -outMin > p.IntegralMax {
		p.IntegralMax = -outMin
	}
	p.Integral = Clamp(p.Integral, -p.IntegralMax, p.IntegralMax)
	p.Output = Clamp(p.Output, outMin, outMax)
}

// SetIntegralMax overrides the integral clamp.
func (p *PID) SetIntegralMax(max float32) {
	if max < 0 {
		max = -max
	}
	p.IntegralMax = max
	p.Integral = Clamp(p.Integral, -max, max)
}
