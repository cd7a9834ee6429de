package probe

import (
	"fmt"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/chain"
	"github.com/OpenTraceLab/probelink/pkg/ftdi"
	"github.com/OpenTraceLab/probelink/pkg/jtag"
	"github.com/OpenTraceLab/probelink/pkg/stlink"
)

type stlinkBackend struct {
	*stlink.Transport
}

func openSTLink(serial string) (backend, error) {
	t, err := stlink.Open(serial)
	if err != nil {
		return nil, err
	}
	return stlinkBackend{t}, nil
}

func (b stlinkBackend) Voltage() (string, error) {
	v, err := b.TargetVoltage()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.2fV", v), nil
}

func (b stlinkBackend) Link() chain.Link { return b.Transport }

func (b stlinkBackend) String() string {
	return fmt.Sprintf("ST-Link %s", b.Version())
}

type cableBackend struct {
	*ftdi.Cable
	link *chain.JTAGLink
}

func newCableBackend(c *ftdi.Cable, irlens []int) cableBackend {
	return cableBackend{
		Cable: c,
		link:  chain.NewJTAGLink(jtag.NewChain(c.JTAG()), irlens),
	}
}

func (b cableBackend) Voltage() (string, error) {
	present, err := b.TargetPresent()
	if err != nil {
		return "", err
	}
	if present {
		return "present", nil
	}
	return "absent", nil
}

func (b cableBackend) Link() chain.Link { return b.link }

func (b cableBackend) SWDScan() (*adiv5.DP, error) {
	return nil, fmt.Errorf("probe: swd on %s: %w", b.Descriptor().Name, adiv5.ErrUnsupported)
}

func (b cableBackend) String() string {
	d := b.Descriptor()
	return fmt.Sprintf("cable %s (%s) at %s", d.Name, d.USBID(), b.Speed())
}
