//go:build rp2040 || rp2350

package main

import (
	"machine"

	"gofoc/encoder"
)

// Encoder bus: SPI0 on GPIO2-4 with a software chip select on GPIO5.
const (
	encoderSCK  = machine.GPIO2
	encoderSDO  = machine.GPIO3
	encoderSDI  = machine.GPIO4
	encoderCS   = machine.GPIO5
	encoderRate = 8_000_000
)

// newEncoder configures SPI0 in mode 1, which the AS5047 samples on the
// falling edge, and returns the sensor driver.
func newEncoder() (*encoder.AS5047, error) {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: encoderRate,
		SCK:       encoderSCK,
		SDO:       encoderSDO,
		SDI:       encoderSDI,
		Mode:      1,
	})
	if err != nil {
		return nil, err
	}
	encoderCS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return encoder.NewAS5047(machine.SPI0, encoderCS), nil
}
