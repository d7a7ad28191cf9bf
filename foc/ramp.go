package foc

// Ramp moves a value toward a target by at most Step per Update, never
// overshooting. The speed loop uses it so a new target speed becomes a
// bounded torque demand instead of a step.
type Ramp struct {
	Step float32

	value  float32
	target float32
}

// NewRamp returns a ramp with the given per-update step.
func NewRamp(step float32) *Ramp {
	return &Ramp{Step: Abs(step)}
}

// Reset places both value and target at v.
func (r *Ramp) Reset(v float32) {
	r.value = v
	r.target = v
}

// SetTarget changes the destination without moving the value.
func (r *Ramp) SetTarget(target float32) {
	r.target = target
}

// Update advances one step and returns the new value.
func (r *Ramp) Update() float32 {
	r.value = Approach(r.value, r.target, r.Step)
	return r.value
}

// Value returns the present ramp output.
func (r *Ramp) Value() float32 {
	return r.value
}

// Target returns the destination.
func (r *Ramp) Target() float32 {
	return r.target
}

// Done reports whether the value has reached the target.
func (r *Ramp) Done() bool {
	return r.value == r.target
}

// Approach returns current moved toward target by at most step.
func Approach(current, target, step float32) float32 {
	switch {
	case current < target:
		current += step
		if current > target {
			current = target
		}
	case current > target:
		current -= step
		if current < target {
			current = target
		}
	}
	return current
}

// ApproachRate is Approach with the step given as a rate per second over dt.
func ApproachRate(current, target, rate, dt float32) float32 {
	return Approach(current, target, Abs(rate*dt))
}
