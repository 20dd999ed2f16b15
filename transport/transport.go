// Package transport wraps the raw serial link to the amplifier board.
// Everything above it deals in frames and samples; this package only
// moves bytes and twiddles baud rates.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is the raw byte transport to the device. The real implementation
// wraps a serial port; tests substitute scripted fakes.
type Port interface {
	// Read fills buf with whatever bytes are available and returns the
	// count. A timed-out read returns (0, nil).
	Read(buf []byte) (int, error)
	// Write sends buf to the device.
	Write(buf []byte) (int, error)
	// SetBaudRate changes the line rate without reopening the port.
	SetBaudRate(baud int) error
	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(d time.Duration) error
	// Close releases the port.
	Close() error
}

// Opener opens a named port at the given baud rate. It exists so the
// port resolver and the driver can be probed and tested without real
// hardware.
type Opener func(name string, baud int) (Port, error)

// serialPort adapts go.bug.st/serial to the Port interface.
type serialPort struct {
	port serial.Port
}

// Open opens a serial port with 8N1 framing at the given baud rate.
func Open(name string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return &serialPort{port: port}, nil
}

func (p *serialPort) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

func (p *serialPort) Write(buf []byte) (int, error) {
	return p.port.Write(buf)
}

func (p *serialPort) SetBaudRate(baud int) error {
	err := p.port.SetMode(&serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("failed to set baud rate to %d: %w", baud, err)
	}
	return nil
}

func (p *serialPort) SetReadTimeout(d time.Duration) error {
	return p.port.SetReadTimeout(d)
}

func (p *serialPort) Close() error {
	return p.port.Close()
}
