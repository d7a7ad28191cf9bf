//go:build !tinygo

package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

var ErrNoDevice = errors.New("serial: no device given")

// NativePort is a host serial device.
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens the device described by cfg.
func Open(cfg *Config) (*NativePort, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: p, cfg: *cfg}, nil
}

// Read returns (0, nil) when the read timeout expires with no data, so that
// io.EOF only ever means the device went away.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	return idleRead(n, err, p.cfg.ReadTimeout)
}

func (p *NativePort) Write(b []byte) (int, error) { return p.port.Write(b) }

// tarm/serial reports an expired read timeout as io.EOF.
func idleRead(n int, err error, timeout time.Duration) (int, error) {
	if n == 0 && timeout > 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// Close closes the device.
func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Flush discards buffered input and output.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the device path the port was opened with.
func (p *NativePort) Device() string { return p.cfg.Device }

var _ Port = (*NativePort)(nil)
