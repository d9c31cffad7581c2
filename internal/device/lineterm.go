package device

import (
	"bytes"
	"context"

	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

var (
	netioStart = []byte("go\r\n")
	crlf       = []byte("\r\n")
)

// lineLink reads NetIO counters, which push a CRLF terminated CPM line every
// second once started. Only the newest complete line is kept per poll; the
// device already averages over a minute.
type lineLink struct {
	serialLink
}

func (l *lineLink) Initialize(ctx context.Context) error {
	if _, err := l.SendCommand(ctx, netioStart); err != nil {
		return err
	}
	logf("NetIO stream started, data will be acquired once per %s", l.timing.Cadence)
	return nil
}

func (l *lineLink) Poll(ctx context.Context) (sample.Sample, error) {
	if err := timeutil.Wait(ctx, l.clock, l.timing.Cadence, nil); err != nil {
		return l.sentinel(), nil
	}

	cancelled, err := l.waitData(ctx)
	if err != nil {
		return sample.Sample{}, err
	}
	if cancelled {
		return l.sentinel(), nil
	}

	var acc []byte
	for {
		chunk, err := l.conn.ReadAvailable()
		if err != nil {
			return sample.Sample{}, ioError("read line", err)
		}
		acc = append(acc, chunk...)
		if bytes.HasSuffix(acc, crlf) {
			break
		}
		if err := l.conn.WaitPending(ctx); err != nil {
			if ctx.Err() != nil {
				// stopped mid-line; parsed below as a sentinel
				break
			}
			return sample.Sample{}, ioError("wait for line end", err)
		}
	}

	cpm, ok := ParseLastLine(acc)
	if !ok {
		logf("malformed line data %q", acc)
		return l.sentinel(), nil
	}
	return sample.New(cpm, l.clock.Now()), nil
}
