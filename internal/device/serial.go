package device

import (
	"context"

	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/serialport"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

// serialLink carries what every hardware variant shares: the connection,
// the delays and the command primitive.
type serialLink struct {
	conn   *serialport.Conn
	timing Timing
	clock  timeutil.Clock
}

func (l *serialLink) Initialize(context.Context) error { return nil }

func (l *serialLink) SendCommand(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := l.conn.Discard(); err != nil {
		return nil, ioError("discard input", err)
	}
	if err := l.conn.Write(cmd); err != nil {
		return nil, ioError("write command", err)
	}
	if err := timeutil.Wait(ctx, l.clock, l.timing.Settle, nil); err != nil {
		return nil, err
	}
	resp, err := l.conn.ReadAvailable()
	if err != nil {
		return nil, ioError("read response", err)
	}
	return resp, nil
}

func (l *serialLink) Close() error {
	return l.conn.Close()
}

func (l *serialLink) sentinel() sample.Sample {
	return sample.Sentinel(l.clock.Now())
}

// waitData blocks until input is pending and then lets the rest of the
// reading arrive. cancelled is true when ctx ended the wait.
func (l *serialLink) waitData(ctx context.Context) (cancelled bool, err error) {
	if err := l.conn.WaitPending(ctx); err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		return false, ioError("wait for data", err)
	}
	if err := timeutil.Wait(ctx, l.clock, l.timing.DataSettle, nil); err != nil {
		return true, nil
	}
	return false, nil
}
