package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// TestableSerialPort implements SerialPorter with configurable behaviour for
// testing. Reads honour the configured read timeout, returning 0, nil when no
// data arrives in time, the same way go.bug.st/serial does.
type TestableSerialPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	written  bytes.Buffer
	commands [][]byte

	dataCh chan struct{}
	done   chan struct{}
	closed bool

	// ReadTimeout is the value passed to SetReadTimeout.
	ReadTimeout time.Duration

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// ResetCalls counts ResetInputBuffer calls.
	ResetCalls int

	// Responder, when set, is called with every write; its return value is
	// queued as input, as if the device answered the command.
	Responder func(command []byte) []byte
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{
		dataCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Read returns buffered input, waiting up to ReadTimeout for some to arrive.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.New("serial port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		t.mu.Unlock()
		return 0, err
	}
	if t.readBuf.Len() > 0 {
		defer t.mu.Unlock()
		return t.readBuf.Read(p)
	}
	timeout := t.ReadTimeout
	t.mu.Unlock()

	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.dataCh:
	case <-t.done:
		return 0, errors.New("serial port closed")
	case <-timer.C:
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.readBuf.Len() == 0 {
		return 0, nil
	}
	return t.readBuf.Read(p)
}

// Write records p and queues the Responder's answer, if any.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		t.mu.Unlock()
		return 0, err
	}
	t.written.Write(p)
	t.commands = append(t.commands, append([]byte(nil), p...))
	responder := t.Responder
	t.mu.Unlock()

	if responder != nil {
		if reply := responder(p); len(reply) > 0 {
			t.AddReadData(reply)
		}
	}
	return len(p), nil
}

// Close marks the port closed and wakes a blocked reader.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return t.CloseError
}

// ResetInputBuffer discards unread input.
func (t *TestableSerialPort) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ResetCalls++
	t.readBuf.Reset()
	return nil
}

// SetReadTimeout implements SerialPorter.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadTimeout = timeout
	return nil
}

// AddReadData queues data as if the device had sent it.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	t.readBuf.Write(data)
	t.mu.Unlock()

	select {
	case t.dataCh <- struct{}{}:
	default:
	}
}

// SetReadError makes the next Read fail with err, waking a blocked reader.
func (t *TestableSerialPort) SetReadError(err error) {
	t.mu.Lock()
	t.ReadError = err
	t.mu.Unlock()

	select {
	case t.dataCh <- struct{}{}:
	default:
	}
}

// Commands returns every write in order.
func (t *TestableSerialPort) Commands() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.commands))
	copy(out, t.commands)
	return out
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.written.Bytes()...)
}

// IsClosed reports whether Close was called.
func (t *TestableSerialPort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// MockFactory implements Factory for testing.
type MockFactory struct {
	mu sync.Mutex

	// Port is returned from Open.
	Port SerialPorter

	// Error is returned by Open if set.
	Error error

	// OpenCalls records all Open calls.
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path    string
	Options PortOptions
}

// NewMockFactory creates a MockFactory that hands out port.
func NewMockFactory(port SerialPorter) *MockFactory {
	return &MockFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Options: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
