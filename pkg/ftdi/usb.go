package ftdi

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

// USB timeout of one bulk transfer.
const usbTimeout = time.Second

// Vendor control requests.
const (
	reqTypeOut    = 0x40
	reqReset      = 0x00
	reqSetLatency = 0x09
	reqSetBitMode = 0x0B

	resetSIO   = 0
	purgeRX    = 1
	purgeTX    = 2
	bitModeOff = 0x00
	bitMPSSE   = 0x02
)

// FT2232C/D report this device release. Their MPSSE runs from 12 MHz.
const (
	bcdFT2232D   = 0x0500
	legacyClock  = 12_000_000
	modemHeaders = 2
)

// usbChannel is the byte stream of one MPSSE interface. Every bulk IN
// packet starts with two modem status bytes which are dropped.
type usbChannel struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	index   uint16
	packet  int
	pending []byte
}

func (u *usbChannel) control(req uint8, val uint16) error {
	if _, err := u.dev.Control(reqTypeOut, req, val, u.index, nil); err != nil {
		return fmt.Errorf("ftdi: control %#02x/%#04x: %w", req, val, err)
	}
	return nil
}

func (u *usbChannel) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), usbTimeout)
	defer cancel()
	return u.out.WriteContext(ctx, p)
}

// Read returns payload bytes, polling until at least one arrives or the
// transfer timeout passes.
func (u *usbChannel) Read(p []byte) (int, error) {
	deadline := time.Now().Add(usbTimeout)
	packets := len(p)/(u.packet-modemHeaders) + 1
	buf := make([]byte, u.packet*packets)
	for len(u.pending) == 0 {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("ftdi: read timed out: %w", adiv5.ErrLinkFailure)
		}
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		n, err := u.in.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			return 0, err
		}
		for off := 0; off < n; off += u.packet {
			end := min(off+u.packet, n)
			if end-off > modemHeaders {
				u.pending = append(u.pending, buf[off+modemHeaders : end]...)
			}
		}
	}
	n := copy(p, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

func (u *usbChannel) Close() error {
	if u.dev != nil && u.intf != nil {
		_ = u.control(reqSetBitMode, bitModeOff)
	}
	if u.intf != nil {
		u.intf.Close()
	}
	if u.cfg != nil {
		u.cfg.Close()
	}
	if u.dev != nil {
		u.dev.Close()
	}
	if u.ctx != nil {
		u.ctx.Close()
	}
	return nil
}

// DeviceInfo describes an attached adapter and the cables matching its IDs.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Product   string
	Cables    []string
}

// ListDevices enumerates attached chips whose IDs appear in t.
func ListDevices(t *Table) ([]DeviceInfo, error) {
	byID := map[[2]uint16][]string{}
	for _, name := range t.Names() {
		d, _ := t.Lookup(name)
		id := [2]uint16{d.VendorID, d.ProductID}
		byID[id] = append(byID[id], name)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := byID[[2]uint16{uint16(desc.Vendor), uint16(desc.Product)}]
		return ok
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("ftdi: enumerate: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		serial, _ := d.SerialNumber()
		product, _ := d.Product()
		infos = append(infos, DeviceInfo{
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			Serial:    serial,
			Product:   product,
			Cables:    byID[[2]uint16{uint16(d.Desc.Vendor), uint16(d.Desc.Product)}],
		})
	}
	return infos, nil
}

// Open claims the adapter described by desc, puts its channel into MPSSE
// mode and runs Init at speed.
func Open(desc Descriptor, serial string, speed physic.Frequency) (*Cable, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return uint16(d.Vendor) == desc.VendorID && uint16(d.Product) == desc.ProductID
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("ftdi: enumerate: %w", err)
	}

	serials := make([]string, len(devs))
	for i, d := range devs {
		serials[i], _ = d.SerialNumber()
	}
	idx, err := selectDevice(desc, serials, serial)
	for i, d := range devs {
		if i != idx {
			d.Close()
		}
	}
	if err != nil {
		ctx.Close()
		return nil, err
	}
	dev := devs[idx]
	glog.V(1).Infof("ftdi: %s: found %s serial %s", desc.Name, desc.USBID(), serials[idx])

	u := &usbChannel{ctx: ctx, dev: dev, index: uint16(desc.Channel)}
	if err := u.claim(desc.Channel); err != nil {
		u.Close()
		return nil, err
	}
	for _, step := range []struct{ req, val uint16 }{
		{reqReset, resetSIO},
		{reqSetLatency, 1},
		{reqSetBitMode, bitModeOff},
		{reqSetBitMode, bitMPSSE << 8},
		{reqReset, purgeRX},
		{reqReset, purgeTX},
	} {
		if err := u.control(uint8(step.req), step.val); err != nil {
			u.Close()
			return nil, err
		}
	}

	c := New(desc, u)
	c.closer = u
	if dev.Desc.Device == bcdFT2232D {
		c.clock = legacyClock
	}
	if err := c.Init(speed); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// selectDevice picks the chip whose serial matches want, or the only chip
// attached when want is empty.
func selectDevice(desc Descriptor, serials []string, want string) (int, error) {
	idx, matches := -1, 0
	for i, s := range serials {
		if want != "" && s != want {
			continue
		}
		if idx < 0 {
			idx = i
		}
		matches++
	}
	switch {
	case matches == 0:
		return -1, fmt.Errorf("ftdi: no %s adapter (%s) found", desc.Name, desc.USBID())
	case matches > 1:
		return -1, fmt.Errorf("ftdi: %d %s adapters attached, select one by serial", matches, desc.Name)
	}
	return idx, nil
}

func (u *usbChannel) claim(ch Channel) error {
	if err := u.dev.SetAutoDetach(true); err != nil {
		glog.V(1).Infof("ftdi: auto detach: %v", err)
	}
	cfg, err := u.dev.Config(1)
	if err != nil {
		return fmt.Errorf("ftdi: set config: %w", err)
	}
	u.cfg = cfg
	intf, err := cfg.Interface(int(ch-ChannelA), 0)
	if err != nil {
		return fmt.Errorf("ftdi: claim interface %s: %w", ch, err)
	}
	u.intf = intf

	outNum, inNum := ch.endpoints()
	if u.out, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("ftdi: out endpoint: %w", err)
	}
	if u.in, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("ftdi: in endpoint: %w", err)
	}
	u.packet = u.in.Desc.MaxPacketSize
	if u.packet <= modemHeaders {
		u.packet = 64
	}
	return nil
}
