// Package controller runs the consumer side of the relay: it drains the
// aggregator, uploads each average and paces itself between uploads. It is
// the only place that decides when acquisition stops.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/radmon-relay/internal/monitoring"
	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
	"github.com/banshee-data/radmon-relay/internal/upload"
)

var logf = monitoring.Scoped("controller")

// ErrAcquisitionStopped is returned when the acquisition loop ends on its own.
var ErrAcquisitionStopped = errors.New("acquisition stopped")

const (
	DefaultUploadInterval = 30 * time.Second
	DefaultRetryInterval  = 5 * time.Second
)

// Acquirer is the producer the controller supervises.
type Acquirer interface {
	Run(ctx context.Context) error
	Stop()
	IsRunning() bool
	Done() <-chan struct{}
	Err() error
}

// Drainer hands out one averaged sample per call.
type Drainer interface {
	DrainAverage() sample.Sample
}

// Uploader submits one sample.
type Uploader interface {
	Send(ctx context.Context, s sample.Sample) error
}

// Options tune the controller's pacing.
type Options struct {
	// UploadInterval is the wait after an upload attempt.
	UploadInterval time.Duration
	// RetryInterval is the wait when there was nothing to upload.
	RetryInterval time.Duration
	Clock         timeutil.Clock
}

// UploadResult records the most recent upload attempt.
type UploadResult struct {
	At     time.Time     `json:"at"`
	Sample sample.Sample `json:"sample"`
	Error  string        `json:"error,omitempty"`
}

// Controller owns the acquisition loop and the uploader.
type Controller struct {
	acq  Acquirer
	agg  Drainer
	up   Uploader
	opts Options

	mu   sync.Mutex
	last *UploadResult
}

// New wires a controller. Zero options take the defaults.
func New(acq Acquirer, agg Drainer, up Uploader, opts Options) *Controller {
	if opts.UploadInterval <= 0 {
		opts.UploadInterval = DefaultUploadInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Controller{acq: acq, agg: agg, up: up, opts: opts}
}

// Run starts acquisition and cycles drain → upload → wait until ctx is
// cancelled, acquisition fails, or radmon.org rejects the credentials.
// Cancellation returns nil once the device is closed; every other exit
// returns the error that should end the process.
func (c *Controller) Run(ctx context.Context) error {
	acqErr := make(chan error, 1)
	go func() {
		acqErr <- c.acq.Run(ctx)
	}()

	for {
		if !c.acq.IsRunning() {
			return c.acquisitionStopped(ctx, acqErr)
		}

		wait := c.opts.RetryInterval
		s := c.agg.DrainAverage()
		if s.Valid() {
			logf("average result: %s", s)
			err := c.up.Send(ctx, s)
			c.record(s, err)
			switch {
			case errors.Is(err, upload.ErrAuth):
				logf("radmon.org rejected the user/password combination")
				c.shutdown(acqErr)
				return err
			case err != nil && ctx.Err() == nil:
				logf("error communicating with server: %v", err)
			}
			wait = c.opts.UploadInterval
		} else {
			logf("no samples in queue, waiting %s", wait)
		}

		if err := timeutil.Wait(ctx, c.opts.Clock, wait, c.acq.Done()); err != nil {
			logf("shutting down")
			c.shutdown(acqErr)
			return nil
		}
	}
}

// shutdown stops acquisition and waits for the loop to release the device.
func (c *Controller) shutdown(acqErr <-chan error) {
	c.acq.Stop()
	if err := <-acqErr; err != nil {
		logf("acquisition ended with error during shutdown: %v", err)
	}
}

func (c *Controller) acquisitionStopped(ctx context.Context, acqErr <-chan error) error {
	err := <-acqErr
	if err == nil && ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = c.acq.Err()
	}
	if err == nil {
		return ErrAcquisitionStopped
	}
	return fmt.Errorf("%w: %w", ErrAcquisitionStopped, err)
}

func (c *Controller) record(s sample.Sample, err error) {
	res := &UploadResult{At: c.opts.Clock.Now().UTC(), Sample: s}
	if err != nil {
		res.Error = err.Error()
	}
	c.mu.Lock()
	c.last = res
	c.mu.Unlock()
}

// LastUpload returns the most recent upload attempt, or nil before the first.
func (c *Controller) LastUpload() *UploadResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	res := *c.last
	return &res
}
