package sample

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

// Aggregator buffers raw samples from a single producer and hands one
// averaged sample to a single consumer on each drain. The buffer has no
// capacity bound.
type Aggregator struct {
	clock timeutil.Clock

	mu      sync.Mutex
	samples []Sample
}

// NewAggregator returns an empty aggregator. A nil clock uses the real clock.
func NewAggregator(clock timeutil.Clock) *Aggregator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Aggregator{clock: clock}
}

// Append adds s to the buffer.
func (a *Aggregator) Append(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, s)
}

// Len returns the number of buffered samples.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// DrainAverage empties the buffer and returns the mean CPM, rounded half up,
// stamped with the most recently appended sample's time. An empty buffer
// yields a sentinel stamped now.
func (a *Aggregator) DrainAverage() Sample {
	a.mu.Lock()
	drained := a.samples
	a.samples = nil
	a.mu.Unlock()

	if len(drained) == 0 {
		return Sentinel(a.clock.Now())
	}

	counts := make([]float64, len(drained))
	for i, s := range drained {
		counts[i] = float64(s.CPM)
	}
	mean := stat.Mean(counts, nil)

	return Sample{
		CPM:       int(math.Floor(mean + 0.5)),
		Timestamp: drained[len(drained)-1].Timestamp,
	}
}
