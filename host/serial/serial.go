// Package serial opens the byte stream that carries protocol frames between
// a host tool and the motor controller.
package serial

import (
	"io"
	"time"
)

// Port is a byte stream to the controller. The native implementation wraps
// github.com/tarm/serial; tests use in-memory pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input.
	Flush() error
}

// Config describes a serial device.
type Config struct {
	Device string
	Baud   int

	// ReadTimeout bounds a single Read. Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// DefaultBaud is used on UART links. USB CDC ignores the rate.
const DefaultBaud = 921600

// DefaultConfig returns a configuration for device with a short read timeout
// so reader goroutines can notice shutdown.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
