package device

import (
	"context"

	"github.com/banshee-data/radmon-relay/internal/sample"
)

// simpleASCIILink reads counters that print a bare decimal CPM whenever
// they have a new value.
type simpleASCIILink struct {
	serialLink
}

func (l *simpleASCIILink) Poll(ctx context.Context) (sample.Sample, error) {
	cancelled, err := l.waitData(ctx)
	if err != nil {
		return sample.Sample{}, err
	}
	if cancelled {
		return l.sentinel(), nil
	}

	payload, err := l.conn.ReadAvailable()
	if err != nil {
		return sample.Sample{}, ioError("read reading", err)
	}

	cpm, ok := ParseDecimal(payload)
	if !ok {
		logf("unparseable reading %q", payload)
		return l.sentinel(), nil
	}
	return sample.New(cpm, l.clock.Now()), nil
}
