// Package acquisition runs the producer side of the relay: it owns the device
// link, polls it, and feeds valid readings into the sample aggregator.
package acquisition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/radmon-relay/internal/device"
	"github.com/banshee-data/radmon-relay/internal/monitoring"
	"github.com/banshee-data/radmon-relay/internal/sample"
)

var logf = monitoring.Scoped("acquisition")

// ErrAlreadyStarted is returned when Run is called a second time.
var ErrAlreadyStarted = errors.New("acquisition loop already started")

// State is the loop's run state. It only moves forward:
// Running → StopRequested → Stopped, or Running → Stopped on exit.
type State int32

const (
	Running State = iota
	StopRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Opener opens the device link. device.Open is used when nil.
type Opener func(device.Config) (device.Link, error)

// Loop drives one device link into one aggregator.
type Loop struct {
	cfg     device.Config
	agg     *sample.Aggregator
	open    Opener
	session string

	state   atomic.Int32
	started atomic.Bool
	done    chan struct{}

	mu       sync.Mutex
	cancel   context.CancelFunc
	err      error
	last     sample.Sample
	acquired int64
}

// New returns a loop in the Running state that has not touched the device yet.
func New(cfg device.Config, agg *sample.Aggregator, open Opener) *Loop {
	if open == nil {
		open = device.Open
	}
	return &Loop{
		cfg:     cfg,
		agg:     agg,
		open:    open,
		session: uuid.NewString(),
		done:    make(chan struct{}),
	}
}

// Run opens and initialises the device and polls it until Stop is called,
// ctx is cancelled or the device fails. It returns the fatal error, or nil
// after a requested stop. The link is closed before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	var err error
	if l.State() == Running {
		err = l.acquire(ctx)
	}
	l.finish(err)
	return err
}

func (l *Loop) acquire(ctx context.Context) error {
	link, err := l.open(l.cfg)
	if err != nil {
		logf("session %s: cannot open device: %v", l.session, err)
		return err
	}
	defer func() {
		if err := link.Close(); err != nil {
			logf("session %s: closing device: %v", l.session, err)
		}
	}()

	logf("session %s: gathering data started, protocol %s", l.session, l.cfg.Protocol)
	if err := link.Initialize(ctx); err != nil {
		if l.stopping(ctx) {
			return nil
		}
		logf("session %s: initialisation failed: %v", l.session, err)
		return err
	}

	for !l.stopping(ctx) {
		s, err := link.Poll(ctx)
		if err != nil {
			if l.stopping(ctx) {
				return nil
			}
			logf("session %s: device failed: %v", l.session, err)
			return err
		}
		if !s.Valid() {
			if !l.stopping(ctx) {
				logf("session %s: no valid reading", l.session)
			}
			continue
		}

		l.agg.Append(s)
		l.mu.Lock()
		l.last = s
		l.acquired++
		l.mu.Unlock()
		logf("session %s: sample %s", l.session, s)
	}
	return nil
}

func (l *Loop) stopping(ctx context.Context) bool {
	return l.State() != Running || ctx.Err() != nil
}

func (l *Loop) finish(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()

	l.state.Store(int32(Stopped))
	close(l.done)
	logf("session %s: gathering data stopped", l.session)
}

// Stop asks the loop to finish. It is idempotent and does not wait; use
// Done to wait for the device to be closed.
func (l *Loop) Stop() {
	l.state.CompareAndSwap(int32(Running), int32(StopRequested))

	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the current run state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// IsRunning reports whether the loop has not reached Stopped yet.
func (l *Loop) IsRunning() bool {
	return l.State() != Stopped
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the fatal error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Session identifies this loop in logs and status output.
func (l *Loop) Session() string {
	return l.session
}

// Status is a point-in-time view of the loop for the status server.
type Status struct {
	Session  string         `json:"session"`
	Protocol string         `json:"protocol"`
	State    string         `json:"state"`
	Acquired int64          `json:"acquired"`
	Buffered int            `json:"buffered"`
	Last     *sample.Sample `json:"last,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Status snapshots the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Status{
		Session:  l.session,
		Protocol: l.cfg.Protocol.String(),
		State:    l.State().String(),
		Acquired: l.acquired,
		Buffered: l.agg.Len(),
	}
	if l.acquired > 0 {
		last := l.last
		st.Last = &last
	}
	if l.err != nil {
		st.Error = l.err.Error()
	}
	return st
}
