// Package chain discovers the devices on a debug link and binds a debug port
// to every device the known-device table can claim.
package chain

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// Link is the probe side of a scan: it enters debug mode and reports one
// device per IDCODE, nearest TDO first.
type Link interface {
	EnterDebug() error
	Discover() ([]*jtag.Device, error)
}

// PortLink is a Link that can bind a debug port transport to a discovered
// device.
type PortLink interface {
	Link
	DebugPort(dev *jtag.Device) (adiv5.Port, error)
}

// Device is one discovered chain entry together with its classification.
type Device struct {
	*jtag.Device
	Description string

	// DP is set when a handler claimed the device.
	DP *adiv5.DP
}

// Claimed reports whether a debug port is bound to the device.
func (d *Device) Claimed() bool { return d.DP != nil }

func (d *Device) String() string {
	return fmt.Sprintf("%s %s", d.Device, d.Description)
}

// Scanner classifies the devices behind a Link. Each Scan replaces the
// result of the previous one, so devices and DPs from an earlier scan must
// not be used afterwards.
type Scanner struct {
	link  Link
	table *Table
	devs  []*Device
}

// NewScanner scans link against table. A nil table selects DefaultTable.
func NewScanner(link Link, table *Table) *Scanner {
	if table == nil {
		table = DefaultTable()
	}
	return &Scanner{link: link, table: table}
}

// Link returns the scanned link.
func (s *Scanner) Link() Link { return s.link }

// Scan enters debug mode, reads the chain and runs the first matching
// handler of every device. It returns the number of devices found; an empty
// chain is 0 with a nil error. Unmatched devices are kept unclaimed.
func (s *Scanner) Scan() (int, error) {
	s.devs = nil

	if err := s.link.EnterDebug(); err != nil {
		return 0, fmt.Errorf("chain: enter debug: %w", err)
	}
	found, err := s.link.Discover()
	if err != nil {
		return 0, fmt.Errorf("chain: discover: %w", err)
	}

	devs := make([]*Device, 0, len(found))
	for _, jd := range found {
		dev := &Device{Device: jd, Description: UnknownDevice}
		if e, ok := s.table.Lookup(jd.IDCode); ok {
			dev.Description = e.Description
			if err := s.claim(e, dev); err != nil {
				return 0, err
			}
		}
		glog.V(1).Infof("chain: %s", dev)
		devs = append(devs, dev)
	}
	s.devs = devs
	return len(devs), nil
}

func (s *Scanner) claim(e Entry, dev *Device) error {
	if e.Handler == nil {
		return nil
	}
	err := e.Handler(s.link, dev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, adiv5.ErrUnsupported):
		glog.Warningf("chain: device %d left unclaimed: %v", dev.Index, err)
		dev.DP = nil
		return nil
	}
	return fmt.Errorf("chain: device %d: %w", dev.Index, err)
}

// Devices returns the devices of the last scan in chain order.
func (s *Scanner) Devices() []*Device {
	out := make([]*Device, len(s.devs))
	copy(out, s.devs)
	return out
}

// DebugPorts returns the DPs bound by the last scan.
func (s *Scanner) DebugPorts() []*adiv5.DP {
	var out []*adiv5.DP
	for _, d := range s.devs {
		if d.DP != nil {
			out = append(out, d.DP)
		}
	}
	return out
}

// ADIv5Handler binds an ARM debug port to dev through the link's transport.
func ADIv5Handler(link Link, dev *Device) error {
	pl, ok := link.(PortLink)
	if !ok {
		return fmt.Errorf("chain: %T binds no debug port: %w", link, adiv5.ErrUnsupported)
	}
	port, err := pl.DebugPort(dev.Device)
	if err != nil {
		return err
	}
	dev.DP = adiv5.NewDP(dev.IDCode, port, dev.Device)
	return nil
}
