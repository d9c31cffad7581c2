package device

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

var errNoDevice = errors.New("demo link has no device")

type demoLink struct {
	timing   Timing
	clock    timeutil.Clock
	readings func() int
}

func newDemoLink(cfg Config) *demoLink {
	readings := cfg.Readings
	if readings == nil {
		readings = func() int { return 5 + rand.IntN(36) }
	}
	return &demoLink{timing: cfg.timing(), clock: cfg.Clock, readings: readings}
}

func (d *demoLink) Initialize(context.Context) error {
	logf("demo mode, no device attached")
	return nil
}

func (d *demoLink) Poll(ctx context.Context) (sample.Sample, error) {
	if err := timeutil.Wait(ctx, d.clock, d.timing.Cadence, nil); err != nil {
		return sample.Sentinel(d.clock.Now()), nil
	}
	return sample.New(d.readings(), d.clock.Now()), nil
}

func (d *demoLink) SendCommand(context.Context, []byte) ([]byte, error) {
	return nil, errNoDevice
}

func (d *demoLink) Close() error { return nil }
