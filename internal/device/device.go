// Package device talks to Geiger counters. Each supported protocol variant
// implements Link; Open picks the variant from a Protocol tag.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/serialport"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
)

var (
	// ErrConnection reports that the device could not be opened.
	ErrConnection = errors.New("device connection failed")
	// ErrProtocol reports a failed handshake or an unexpected response.
	ErrProtocol = errors.New("device protocol error")
	// ErrIO reports a read or write failure on an open connection.
	ErrIO = errors.New("device i/o error")
	// ErrUnknownProtocol is returned for an unrecognised Protocol.
	ErrUnknownProtocol = errors.New("unknown device protocol")
)

// Link is one open conversation with a counter.
//
// Poll blocks for the protocol's cadence and then returns one measurement.
// When ctx is cancelled while Poll is waiting it returns a sentinel sample
// and a nil error. There is no watchdog: a device that goes silent without
// an I/O error keeps Poll waiting until ctx is cancelled. Any error returned
// by Initialize or Poll is fatal for the link.
type Link interface {
	Initialize(ctx context.Context) error
	Poll(ctx context.Context) (sample.Sample, error)
	// SendCommand discards pending input, writes cmd, waits the settle
	// delay and returns whatever the device sent back.
	SendCommand(ctx context.Context, cmd []byte) ([]byte, error)
	Close() error
}

// Protocol selects a Link implementation.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	// ProtocolDemo generates random readings without hardware.
	ProtocolDemo
	// ProtocolSimpleASCII reads a bare decimal CPM whenever the device sends one.
	ProtocolSimpleASCII
	// ProtocolGMC polls GQ Electronics GMC counters with <GETCPM>>.
	ProtocolGMC
	// ProtocolLineTerminated reads CRLF terminated CPM lines pushed by NetIO counters.
	ProtocolLineTerminated
)

var protocolNames = map[Protocol]string{
	ProtocolDemo:           "demo",
	ProtocolSimpleASCII:    "mygeiger",
	ProtocolGMC:            "gmc",
	ProtocolLineTerminated: "netio",
}

// ParseProtocol maps a configuration value to a Protocol. Matching is case
// insensitive and accepts both the device family names and the variant names.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "demo":
		return ProtocolDemo, nil
	case "mygeiger", "simpleascii":
		return ProtocolSimpleASCII, nil
	case "gmc", "gmcbinary":
		return ProtocolGMC, nil
	case "netio", "lineterminated":
		return ProtocolLineTerminated, nil
	}
	return ProtocolUnknown, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so config files can name
// the protocol directly.
func (p *Protocol) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// NeedsPort reports whether the protocol talks to a serial device.
func (p Protocol) NeedsPort() bool {
	return p != ProtocolDemo
}

// Timing holds the delays a Link uses.
type Timing struct {
	// Cadence is the wait before each measurement.
	Cadence time.Duration
	// Settle is how long SendCommand waits for a reply.
	Settle time.Duration
	// DataSettle lets the rest of a reading arrive after its first byte.
	DataSettle time.Duration
}

// DefaultTiming returns the production delays for p.
func DefaultTiming(p Protocol) Timing {
	t := Timing{Settle: 500 * time.Millisecond, DataSettle: 100 * time.Millisecond}
	switch p {
	case ProtocolDemo:
		t.Cadence = 5 * time.Second
	case ProtocolGMC, ProtocolLineTerminated:
		t.Cadence = 30 * time.Second
	}
	return t
}

// Config describes which counter to open and how.
type Config struct {
	Protocol Protocol
	Path     string
	Options  serialport.PortOptions

	// Timing overrides DefaultTiming when set.
	Timing *Timing
	// Clock defaults to the real clock.
	Clock timeutil.Clock
	// Factory defaults to serialport.RealFactory.
	Factory serialport.Factory
	// Readings feeds the demo link; defaults to uniform random CPM in [5,40].
	Readings func() int
}

func (c Config) timing() Timing {
	if c.Timing != nil {
		return *c.Timing
	}
	return DefaultTiming(c.Protocol)
}

// Open connects to the configured counter. Demo links open nothing.
func Open(cfg Config) (Link, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Factory == nil {
		cfg.Factory = serialport.RealFactory{}
	}

	switch cfg.Protocol {
	case ProtocolDemo:
		return newDemoLink(cfg), nil
	case ProtocolSimpleASCII, ProtocolGMC, ProtocolLineTerminated:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownProtocol, cfg.Protocol)
	}

	conn, err := serialport.Dial(cfg.Factory, cfg.Path, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, cfg.Path, err)
	}
	if err := conn.Discard(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: flush %s: %w", ErrConnection, cfg.Path, err)
	}

	base := serialLink{
		conn:   conn,
		timing: cfg.timing(),
		clock:  cfg.Clock,
	}
	switch cfg.Protocol {
	case ProtocolSimpleASCII:
		return &simpleASCIILink{serialLink: base}, nil
	case ProtocolGMC:
		return &gmcLink{serialLink: base}, nil
	default:
		return &lineLink{serialLink: base}, nil
	}
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
