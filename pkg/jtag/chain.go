package jtag

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/tap"
)

// Limits applied while sizing an unknown chain.
const (
	MaxDevices = 32
	MaxIRLen   = 32
)

// Chain drives every TAP behind one Driver and keeps the geometry of the
// devices found by the last Scan.
type Chain struct {
	drv  Driver
	tap  *tap.Machine
	devs []*Device
}

// NewChain wraps drv. The TAP state is unknown until Reset or Scan.
func NewChain(drv Driver) *Chain {
	return &Chain{drv: drv, tap: tap.NewMachine()}
}

// Driver returns the underlying cable driver.
func (c *Chain) Driver() Driver { return c.drv }

// Devices returns the devices found by the last Scan.
func (c *Chain) Devices() []*Device { return c.devs }

// State returns the tracked TAP state.
func (c *Chain) State() tap.State { return c.tap.State() }

// Reset forces every TAP through Test-Logic-Reset into Run-Test/Idle.
func (c *Chain) Reset() error {
	tms, ticks := c.tap.Reset()
	if err := c.drv.TMSSeq(tms, ticks); err != nil {
		return fmt.Errorf("jtag: tap reset: %w", err)
	}
	return c.walk(tap.RunTestIdle)
}

// Scan sizes the chain. With irlens nil the IR lengths are detected by
// flooding Shift-IR with ones, where every captured 1 starts a new device.
// A repeated 1 means the flood reached TDO. Otherwise irlens gives the IR
// length of every device, nearest TDO first. An empty chain is valid.
func (c *Chain) Scan(irlens []int) ([]*Device, error) {
	c.devs = nil
	if err := c.Reset(); err != nil {
		return nil, err
	}

	var devs []*Device
	var err error
	if irlens != nil {
		devs, err = c.fixedIR(irlens)
	} else {
		devs, err = c.detectIR()
	}
	if err != nil {
		return nil, err
	}
	if len(devs) == 0 {
		glog.V(1).Info("jtag: empty chain")
		return nil, nil
	}

	if err := c.countBypass(devs); err != nil {
		return nil, err
	}
	if err := c.readIDCodes(devs); err != nil {
		return nil, err
	}

	for i, d := range devs {
		if i > 0 {
			d.IRPrescan = devs[i-1].IRPrescan + devs[i-1].IRLen
		}
		d.DRPrescan = i
		d.DRPostscan = len(devs) - i - 1
	}
	for i := len(devs) - 1; i > 0; i-- {
		devs[i-1].IRPostscan = devs[i].IRPostscan + devs[i].IRLen
	}
	for _, d := range devs {
		glog.V(1).Infof("jtag: found %s", d)
	}
	c.devs = devs
	return devs, nil
}

func (c *Chain) fixedIR(irlens []int) ([]*Device, error) {
	if len(irlens) > MaxDevices {
		return nil, fmt.Errorf("jtag: %d devices exceeds limit of %d", len(irlens), MaxDevices)
	}
	devs := make([]*Device, 0, len(irlens))
	for i, n := range irlens {
		if n <= 0 || n > MaxIRLen {
			return nil, fmt.Errorf("jtag: device %d: invalid ir length %d", i, n)
		}
		devs = append(devs, &Device{Index: i, IRLen: n})
	}
	return devs, nil
}

func (c *Chain) detectIR() ([]*Device, error) {
	if err := c.walk(tap.ShiftIR); err != nil {
		return nil, err
	}
	first, err := c.drv.Next(false, true)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, fmt.Errorf("%w: first IR bit shifted out as 0", ErrChainBroken)
	}

	devs := []*Device{{Index: 0, IRLen: 1}}
	for {
		cur := devs[len(devs)-1]
		if cur.IRLen > MaxIRLen {
			return nil, fmt.Errorf("%w: ir length exceeds %d", ErrChainBroken, MaxIRLen)
		}
		tdo, err := c.drv.Next(false, true)
		if err != nil {
			return nil, err
		}
		if !tdo {
			cur.IRLen++
			continue
		}
		if cur.IRLen == 1 {
			devs = devs[:len(devs)-1]
			break
		}
		if len(devs) == MaxDevices {
			return nil, fmt.Errorf("%w: more than %d devices", ErrChainBroken, MaxDevices)
		}
		devs = append(devs, &Device{Index: len(devs), IRLen: 1})
	}

	if err := c.leaveShift(); err != nil {
		return nil, err
	}
	return devs, nil
}

// countBypass checks that the IR flood left exactly one BYPASS bit per device.
func (c *Chain) countBypass(devs []*Device) error {
	if err := c.program(ones(totalIR(devs)), totalIR(devs)); err != nil {
		return err
	}
	if err := c.walk(tap.ShiftDR); err != nil {
		return err
	}
	n := 0
	for ; n <= len(devs); n++ {
		tdo, err := c.drv.Next(false, true)
		if err != nil {
			return err
		}
		if tdo {
			break
		}
	}
	if n != len(devs) {
		return fmt.Errorf("%w: %d bypass bits for %d devices", ErrChainBroken, n, len(devs))
	}
	return c.leaveShift()
}

// readIDCodes resets the chain so every TAP selects IDCODE or BYPASS, then
// reads one register per device.
func (c *Chain) readIDCodes(devs []*Device) error {
	if err := c.Reset(); err != nil {
		return err
	}
	if err := c.walk(tap.ShiftDR); err != nil {
		return err
	}
	for _, d := range devs {
		tdo, err := c.drv.Next(false, true)
		if err != nil {
			return err
		}
		if !tdo {
			continue
		}
		d.IDCode = 1
		for j := 1; j < 32; j++ {
			tdo, err := c.drv.Next(false, true)
			if err != nil {
				return err
			}
			if tdo {
				d.IDCode |= 1 << j
			}
		}
	}
	return c.leaveShift()
}

// program writes the whole IR chain from Run-Test/Idle.
func (c *Chain) program(ir []byte, ticks int) error {
	if err := c.walk(tap.ShiftIR); err != nil {
		return err
	}
	if _, err := c.shift(ir, ticks, true); err != nil {
		return err
	}
	return c.walk(tap.RunTestIdle)
}

// WriteIR loads ir into dev and BYPASS into every other device.
func (c *Chain) WriteIR(dev *Device, ir uint32) error {
	if dev.IRLen == 0 {
		return fmt.Errorf("jtag: device %d has unknown ir length", dev.Index)
	}
	if err := c.walk(tap.ShiftIR); err != nil {
		return err
	}
	if _, err := c.shift(ones(dev.IRPrescan), dev.IRPrescan, false); err != nil {
		return err
	}
	buf := []byte{byte(ir), byte(ir >> 8), byte(ir >> 16), byte(ir >> 24)}
	if _, err := c.shift(buf, dev.IRLen, dev.IRPostscan == 0); err != nil {
		return err
	}
	if _, err := c.shift(ones(dev.IRPostscan), dev.IRPostscan, true); err != nil {
		return err
	}
	return c.walk(tap.RunTestIdle)
}

// ShiftDR shifts ticks bits of tdi through the data register of dev and
// returns what the register held.
func (c *Chain) ShiftDR(dev *Device, tdi []byte, ticks int) ([]byte, error) {
	if _, err := CheckShift(tdi, ticks); err != nil {
		return nil, err
	}
	if err := c.walk(tap.ShiftDR); err != nil {
		return nil, err
	}
	if _, err := c.shift(ones(dev.DRPrescan), dev.DRPrescan, false); err != nil {
		return nil, err
	}
	tdo, err := c.shift(tdi, ticks, dev.DRPostscan == 0)
	if err != nil {
		return nil, err
	}
	if _, err := c.shift(ones(dev.DRPostscan), dev.DRPostscan, true); err != nil {
		return nil, err
	}
	if err := c.walk(tap.RunTestIdle); err != nil {
		return nil, err
	}
	return tdo, nil
}

func (c *Chain) shift(tdi []byte, ticks int, final bool) ([]byte, error) {
	if ticks == 0 {
		return nil, nil
	}
	tdo, err := c.drv.TDITDOSeq(tdi, final, ticks)
	if err != nil {
		return nil, fmt.Errorf("jtag: shift %d bits: %w", ticks, err)
	}
	if final {
		c.tap.Clock(true)
	}
	return tdo, nil
}

// leaveShift exits a shift state with TDI high and returns to Run-Test/Idle.
func (c *Chain) leaveShift() error {
	if _, err := c.drv.Next(true, true); err != nil {
		return err
	}
	c.tap.Clock(true)
	return c.walk(tap.RunTestIdle)
}

func (c *Chain) walk(target tap.State) error {
	tms, ticks, err := c.tap.Walk(target)
	if err != nil {
		return err
	}
	if ticks == 0 {
		return nil
	}
	if err := c.drv.TMSSeq(tms, ticks); err != nil {
		return fmt.Errorf("jtag: goto %s: %w", target, err)
	}
	return nil
}

func totalIR(devs []*Device) int {
	n := 0
	for _, d := range devs {
		n += d.IRLen
	}
	return n
}
