package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// Factory opens serial ports. It is injected so acquisition can run against
// TestableSerialPort in tests.
type Factory interface {
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(path string, opts PortOptions) (SerialPorter, error)

// Open calls f.
func (f FactoryFunc) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}

// RealFactory opens hardware ports through go.bug.st/serial.
type RealFactory struct{}

// Open opens the device at path with the given options.
func (RealFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// Dial opens path with factory and wraps the port in a Conn using the
// standard one second read timeout.
func Dial(factory Factory, path string, opts PortOptions) (*Conn, error) {
	port, err := factory.Open(path, opts)
	if err != nil {
		return nil, err
	}

	conn, err := NewConn(port, DefaultReadTimeout)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return conn, nil
}
