// Package probe opens a debug probe by adapter name and exposes the chain
// scanner, reset control and target power sensing of whichever backend
// serves it.
package probe

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/chain"
	"github.com/OpenTraceLab/probelink/pkg/ftdi"
)

// STLink is the adapter name selecting an ST-Link command-channel probe.
// Every other name selects a cable descriptor.
const STLink = "stlink"

// Options chooses and configures the adapter of a session.
type Options struct {
	Adapter   string           // STLink or a cable name
	Serial    string           // USB serial filter, empty for any
	CableFile string           // optional YAML cable file
	Speed     physic.Frequency // TCK for bit-banged cables
	IRLens    []int            // fixed IR lengths, nearest TDO first
	Devices   []string         // extra known devices, "PATTERN=description"
}

// backend is the surface shared by the transports a session can hold.
type backend interface {
	io.Closer
	SetReset(assert bool) error
	ReadReset() (bool, error)
	Voltage() (string, error)
	Link() chain.Link
	SWDScan() (*adiv5.DP, error)
	String() string
}

// Session is one open probe.
type Session struct {
	Adapter string

	b       backend
	scanner *chain.Scanner
}

// Open opens the adapter named by opts.
func Open(opts Options) (*Session, error) {
	table, err := KnownDevices(opts.Devices)
	if err != nil {
		return nil, err
	}

	var b backend
	if strings.EqualFold(opts.Adapter, STLink) {
		b, err = openSTLink(opts.Serial)
	} else {
		b, err = openCable(opts)
	}
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("probe: opened %s", b)
	return newSession(opts.Adapter, b, table), nil
}

func newSession(adapter string, b backend, table *chain.Table) *Session {
	return &Session{
		Adapter: adapter,
		b:       b,
		scanner: chain.NewScanner(b.Link(), table),
	}
}

func openCable(opts Options) (backend, error) {
	cables, err := Cables(opts.CableFile)
	if err != nil {
		return nil, err
	}
	desc, err := cables.Lookup(opts.Adapter)
	if err != nil {
		return nil, err
	}
	speed := opts.Speed
	if speed == 0 {
		speed = ftdi.DefaultSpeed
	}
	c, err := ftdi.Open(desc, opts.Serial, speed)
	if err != nil {
		return nil, err
	}
	return newCableBackend(c, opts.IRLens), nil
}

// Cables returns the built-in cable table extended by the optional file.
func Cables(path string) (*ftdi.Table, error) {
	t := ftdi.Builtin()
	if path == "" {
		return t, nil
	}
	if err := t.LoadCableFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

// KnownDevices returns the built-in device table with the extra entries
// searched first.
func KnownDevices(extra []string) (*chain.Table, error) {
	t := chain.NewTable()
	for _, s := range extra {
		e, err := chain.ParseEntry(s)
		if err != nil {
			return nil, err
		}
		t.Add(e)
	}
	for _, e := range chain.KnownDevices() {
		t.Add(e)
	}
	return t, nil
}

func (s *Session) String() string { return s.b.String() }

// Scanner returns the chain scanner bound to the probe's link.
func (s *Session) Scanner() *chain.Scanner { return s.scanner }

// Scan rescans the chain. Devices and DPs from earlier scans are invalid
// afterwards.
func (s *Session) Scan() (int, error) { return s.scanner.Scan() }

// SWD connects to the single debug port behind an SWD link.
func (s *Session) SWD() (*adiv5.DP, error) { return s.b.SWDScan() }

// SetReset drives the target's SRST line.
func (s *Session) SetReset(assert bool) error { return s.b.SetReset(assert) }

// ReadReset reports whether SRST is asserted. Adapters that cannot sense it
// return an error wrapping adiv5.ErrUnsupported.
func (s *Session) ReadReset() (bool, error) { return s.b.ReadReset() }

// Voltage describes the target supply as far as the adapter can tell.
func (s *Session) Voltage() (string, error) { return s.b.Voltage() }

// Close releases the probe.
func (s *Session) Close() error {
	if err := s.b.Close(); err != nil {
		return fmt.Errorf("probe: close %s: %w", s.Adapter, err)
	}
	return nil
}
