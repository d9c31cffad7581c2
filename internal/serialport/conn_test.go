package serialport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) (*Conn, *TestableSerialPort) {
	t.Helper()
	port := NewTestableSerialPort()
	conn, err := NewConn(port, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, port
}

func TestConn_PendingAndReadAvailable(t *testing.T) {
	conn, port := newTestConn(t)

	n, err := conn.Pending()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	port.AddReadData([]byte("123"))
	require.Eventually(t, func() bool {
		n, _ := conn.Pending()
		return n == 3
	}, time.Second, time.Millisecond)

	got, err := conn.ReadAvailable()
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), got)

	n, err = conn.Pending()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestConn_WaitPending(t *testing.T) {
	conn, port := newTestConn(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.AddReadData([]byte{0x01})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.WaitPending(ctx))
}

func TestConn_WaitPending_Cancelled(t *testing.T) {
	conn, _ := newTestConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := conn.WaitPending(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestConn_ReadErrorIsSticky(t *testing.T) {
	conn, port := newTestConn(t)
	boom := errors.New("device unplugged")
	port.SetReadError(boom)

	err := conn.WaitPending(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = conn.Pending()
	assert.ErrorIs(t, err, boom)
	_, err = conn.ReadAvailable()
	assert.ErrorIs(t, err, boom)
}

func TestConn_Discard(t *testing.T) {
	conn, port := newTestConn(t)
	port.AddReadData([]byte("stale"))
	require.Eventually(t, func() bool {
		n, _ := conn.Pending()
		return n > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, conn.Discard())
	n, err := conn.Pending()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, port.ResetCalls)
}

func TestConn_Write(t *testing.T) {
	conn, port := newTestConn(t)
	require.NoError(t, conn.Write([]byte("<GETVER>>")))
	assert.Equal(t, []byte("<GETVER>>"), port.GetWrittenData())

	port.WriteError = errors.New("write failed")
	assert.Error(t, conn.Write([]byte("x")))
}

func TestConn_Close(t *testing.T) {
	conn, port := newTestConn(t)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, port.IsClosed())

	assert.ErrorIs(t, conn.Write([]byte("x")), ErrClosed)
	assert.ErrorIs(t, conn.WaitPending(context.Background()), ErrClosed)
}

func TestDial(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockFactory(port)

	conn, err := Dial(factory, "/dev/ttyUSB0", PortOptions{BaudRate: 9600})
	require.NoError(t, err)
	defer conn.Close()

	call := factory.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/ttyUSB0", call.Path)
	assert.Equal(t, 9600, call.Options.BaudRate)
	assert.Equal(t, DefaultReadTimeout, port.ReadTimeout)
}

func TestDial_OpenError(t *testing.T) {
	factory := NewMockFactory(nil)
	factory.Error = errors.New("no such device")

	_, err := Dial(factory, "/dev/ttyUSB9", PortOptions{})
	assert.ErrorIs(t, err, factory.Error)
}
