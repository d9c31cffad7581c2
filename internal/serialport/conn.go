package serialport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultReadTimeout is applied to every port wrapped by Dial.
const DefaultReadTimeout = time.Second

var (
	ErrClosed      = errors.New("serial connection closed")
	ErrWriteFailed = errors.New("failed to write to serial port")
)

// Conn owns a SerialPorter and a reader goroutine that moves incoming bytes
// into an internal buffer. The buffer is the connection's "bytes pending"
// view. A read error is sticky: once the reader fails, every later call
// reports it.
type Conn struct {
	port SerialPorter

	mu  sync.Mutex
	buf bytes.Buffer
	err error

	notify     chan struct{}
	closed     chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewConn sets the port's read timeout and starts the reader goroutine.
func NewConn(port SerialPorter, readTimeout time.Duration) (*Conn, error) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	c := &Conn{
		port:       port,
		notify:     make(chan struct{}, 1),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.readerDone)

	chunk := make([]byte, 256)
	for {
		n, err := c.port.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(chunk[:n])
			c.mu.Unlock()
			c.signal()
		}
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.signal()
			return
		}

		select {
		case <-c.closed:
			return
		default:
		}
	}
}

func (c *Conn) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Pending reports how many received bytes have not been read yet.
func (c *Conn) Pending() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 && c.err != nil {
		return 0, c.err
	}
	return c.buf.Len(), nil
}

// ReadAvailable returns every byte received so far and empties the buffer.
// It never blocks.
func (c *Conn) ReadAvailable() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		return nil, c.err
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	c.buf.Reset()
	return out, nil
}

// WaitPending blocks until at least one byte is buffered, the reader fails,
// the connection is closed, or ctx is done.
func (c *Conn) WaitPending(ctx context.Context) error {
	for {
		c.mu.Lock()
		n, err := c.buf.Len(), c.err
		c.mu.Unlock()
		if n > 0 {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return ErrClosed
		case <-c.notify:
		}
	}
}

// Discard drops input held by the port driver and by the connection buffer.
func (c *Conn) Discard() error {
	if err := c.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	return c.err
}

// Write sends p to the device in one call.
func (c *Conn) Write(p []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	n, err := c.port.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrWriteFailed
	}
	return nil
}

// Close closes the port and waits for the reader goroutine to exit. It is
// safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.port.Close()
		<-c.readerDone
	})
	return c.closeErr
}
