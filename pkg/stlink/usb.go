package stlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

// TransferTimeout bounds every bulk transfer, measured from submission.
const TransferTimeout = time.Second

// Transfer is one submitted asynchronous bulk transfer. Done is closed when
// the transfer completes or settles after Cancel.
type Transfer interface {
	Done() <-chan struct{}
	Result() (int, error)
	Cancel()
}

// Endpoint submits bulk transfers on one pipe.
type Endpoint interface {
	Submit(buf []byte) (Transfer, error)
	ClearHalt() error
}

// submitWait runs one transfer to completion or to the deadline. On expiry
// the transfer is cancelled once and given the same bound to settle, so no
// transfer stays in flight.
func submitWait(ep Endpoint, buf []byte, timeout time.Duration) (int, error) {
	start := time.Now()
	xfer, err := ep.Submit(buf)
	if err != nil {
		return 0, fmt.Errorf("stlink: submit: %v: %w", err, adiv5.ErrLinkFailure)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-xfer.Done():
	case <-timer.C:
		xfer.Cancel()
		select {
		case <-xfer.Done():
		case <-time.After(timeout):
			glog.Warning("stlink: cancelled transfer did not settle")
		}
		return 0, fmt.Errorf("stlink: transfer timed out after %v: %w", time.Since(start).Round(time.Millisecond), adiv5.ErrLinkFailure)
	}

	n, err := xfer.Result()
	if err != nil {
		return n, fmt.Errorf("stlink: transfer: %v: %w", err, adiv5.ErrLinkFailure)
	}
	return n, nil
}

// usbEndpoint adapts a gousb endpoint. gousb cancels the underlying libusb
// transfer when the context ends and returns once it has settled.
type usbEndpoint struct {
	dev  *gousb.Device
	addr gousb.EndpointAddress
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

type usbTransfer struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	n      int
	err    error
}

func (t *usbTransfer) Done() <-chan struct{} { return t.done }

func (t *usbTransfer) Result() (int, error) { return t.n, t.err }

func (t *usbTransfer) Cancel() { t.once.Do(t.cancel) }

func (e *usbEndpoint) Submit(buf []byte) (Transfer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &usbTransfer{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		if e.in != nil {
			t.n, t.err = e.in.ReadContext(ctx, buf)
		} else {
			t.n, t.err = e.out.WriteContext(ctx, buf)
		}
	}()
	return t, nil
}

// ClearHalt issues CLEAR_FEATURE(ENDPOINT_HALT) to the endpoint.
func (e *usbEndpoint) ClearHalt() error {
	const (
		reqTypeEndpoint = 0x02
		reqClearFeature = 0x01
		featureHalt     = 0x00
	)
	_, err := e.dev.Control(reqTypeEndpoint, reqClearFeature, featureHalt, uint16(e.addr), nil)
	return err
}

// ProbeInfo describes an attached ST-Link.
type ProbeInfo struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Product   string
}

func isSTLink(desc *gousb.DeviceDesc) bool {
	return desc.Vendor == VendorID && uint16(desc.Product)&ProductMask == ProductGroup
}

// ListProbes enumerates attached ST-Link probes.
func ListProbes() ([]ProbeInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(isSTLink)
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("stlink: enumerate: %w", err)
	}

	probes := make([]ProbeInfo, 0, len(devs))
	for _, d := range devs {
		serial, _ := d.SerialNumber()
		product, _ := d.Product()
		probes = append(probes, ProbeInfo{
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			Serial:    serial,
			Product:   product,
		})
	}
	return probes, nil
}

// usbSession owns the gousb handles behind a Transport.
type usbSession struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
}

func (s *usbSession) Close() error {
	if s.intf != nil {
		s.intf.Close()
	}
	if s.cfg != nil {
		s.cfg.Close()
	}
	if s.dev != nil {
		s.dev.Close()
	}
	if s.ctx != nil {
		s.ctx.Close()
	}
	return nil
}

// Open claims the ST-Link whose serial matches, or the only one attached
// when serial is empty, and runs Init.
func Open(serial string) (*Transport, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(isSTLink)
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("stlink: enumerate: %w", err)
	}

	var dev *gousb.Device
	matches := 0
	for _, d := range devs {
		s, _ := d.SerialNumber()
		if serial != "" && s != serial {
			d.Close()
			continue
		}
		matches++
		if dev != nil {
			d.Close()
			continue
		}
		dev = d
		glog.V(1).Infof("stlink: found %04x:%04x serial %s", uint16(d.Desc.Vendor), uint16(d.Desc.Product), s)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("stlink: no probe found")
	}
	if matches > 1 {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("stlink: %d probes attached, select one by serial", matches)
	}

	pid := uint16(dev.Desc.Product)
	if pid == ProductV1 {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("stlink: V1 probes: %w", adiv5.ErrUnsupported)
	}

	sess := &usbSession{ctx: ctx, dev: dev}
	if err := dev.SetAutoDetach(true); err != nil {
		glog.V(1).Infof("stlink: auto detach: %v", err)
	}
	cfg, err := dev.Config(1)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stlink: set config: %w", err)
	}
	sess.cfg = cfg
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stlink: claim interface: %w", err)
	}
	sess.intf = intf

	outNum := endpointOut
	if pid == ProductV2 {
		outNum = endpointOutV2
	}
	out, err := intf.OutEndpoint(outNum)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stlink: out endpoint: %w", err)
	}
	in, err := intf.InEndpoint(endpointIn & 0x0F)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stlink: in endpoint: %w", err)
	}

	t := New(
		&usbEndpoint{dev: dev, addr: out.Desc.Address, out: out},
		&usbEndpoint{dev: dev, addr: in.Desc.Address, in: in},
		pid,
	)
	t.closer = sess
	if err := t.Init(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}
