package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

// GMC command set, see the GQ-RFC1201 protocol document.
var (
	gmcGetVersion   = []byte("<GETVER>>")
	gmcHeartbeatOff = []byte("<HEARTBEAT0>>")
	gmcGetCPM       = []byte("<GETCPM>>")
)

// gmcLink polls GQ Electronics counters. Unsolicited heartbeat output is
// switched off during initialisation so every reply answers our request.
type gmcLink struct {
	serialLink
}

func (l *gmcLink) Initialize(ctx context.Context) error {
	version, err := l.SendCommand(ctx, gmcGetVersion)
	if err != nil {
		return err
	}
	if len(version) == 0 {
		return fmt.Errorf("%w: no response to %s", ErrProtocol, gmcGetVersion)
	}
	logf("found GMC-compatible device, firmware version: %s", strings.TrimSpace(string(version)))

	if _, err := l.SendCommand(ctx, gmcHeartbeatOff); err != nil {
		return err
	}
	logf("data will be acquired once per %s", l.timing.Cadence)
	return nil
}

func (l *gmcLink) Poll(ctx context.Context) (sample.Sample, error) {
	if err := timeutil.Wait(ctx, l.clock, l.timing.Cadence, nil); err != nil {
		return l.sentinel(), nil
	}

	resp, err := l.SendCommand(ctx, gmcGetCPM)
	if err != nil {
		if ctx.Err() != nil {
			return l.sentinel(), nil
		}
		return sample.Sample{}, err
	}

	cpm, err := DecodeGMCCount(resp)
	if err != nil {
		return sample.Sample{}, err
	}
	return sample.New(cpm, l.clock.Now()), nil
}
