//go:build rp2040 || rp2350

package main

import (
	"machine"

	"gofoc/core"
	"gofoc/foc"
)

// Current sense front end: low-side shunts into an amplifier biased at half
// the reference. machine.ADC.Get scales the 12-bit result to 16 bits.
const (
	adcReference = 3.3
	adcFullScale = 65536
	shuntOhms    = 0.01
	senseGain    = 20

	// bus voltage divider ratio
	vbusDivider = 11
)

// adcCurrents samples the three shunt amplifiers and the bus divider. It
// implements core.CurrentSource and core.CurrentOffsetter.
type adcCurrents struct {
	phase   [3]machine.ADC
	vbus    machine.ADC
	offsets foc.ABC
}

func newADCCurrents() *adcCurrents {
	machine.InitADC()
	a := &adcCurrents{
		phase: [3]machine.ADC{
			{Pin: machine.ADC0},
			{Pin: machine.ADC1},
			{Pin: machine.ADC2},
		},
		vbus: machine.ADC{Pin: machine.ADC3},
	}
	for i := range a.phase {
		a.phase[i].Configure(machine.ADCConfig{})
	}
	a.vbus.Configure(machine.ADCConfig{})
	return a
}

func amps(raw uint16) float32 {
	volts := (float32(raw) - adcFullScale/2) * (adcReference / adcFullScale)
	return volts / (shuntOhms * senseGain)
}

// ReadCurrents converts one set of samples. It runs in the wrap interrupt.
func (a *adcCurrents) ReadCurrents() core.CurrentSample {
	i := foc.ABC{
		A: amps(a.phase[0].Get()) - a.offsets.A,
		B: amps(a.phase[1].Get()) - a.offsets.B,
		C: amps(a.phase[2].Get()) - a.offsets.C,
	}
	vbus := float32(a.vbus.Get()) * (adcReference / adcFullScale) * vbusDivider
	return core.CurrentSample{Phase: i, BusVoltage: vbus}
}

// SetCurrentOffsets installs the zero-current readings measured by
// core.Controller.CalibrateCurrentOffsets.
func (a *adcCurrents) SetCurrentOffsets(o foc.ABC) {
	a.offsets = o
}

var (
	_ core.CurrentSource    = (*adcCurrents)(nil)
	_ core.CurrentOffsetter = (*adcCurrents)(nil)
)
