package stlink

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// Port is the debug port as seen through the probe firmware. The firmware
// completes AP reads itself, so Read takes one command for either register
// kind. Sticky faults are cleared with DP register commands on CTRL/STAT and
// ABORT.
type Port struct {
	t   *Transport
	sel uint32
}

var (
	_ adiv5.Port         = (*Port)(nil)
	_ adiv5.Reader       = (*Port)(nil)
	_ adiv5.FaultClearer = (*Port)(nil)
)

// NewPort returns the debug port of t.
func NewPort(t *Transport) *Port {
	return &Port{t: t}
}

// Read returns a DP or AP register in one firmware command.
func (p *Port) Read(addr uint16) (uint32, error) {
	return p.LowAccess(adiv5.Read, addr, 0)
}

// LowAccess performs one register command. AP registers are addressed by
// the APSEL and bank of the last SELECT write.
func (p *Port) LowAccess(dir adiv5.Direction, addr uint16, value uint32) (uint32, error) {
	if !adiv5.IsAP(addr) {
		return p.dpAccess(dir, addr&0xFF, value)
	}

	apsel := uint8(p.sel >> adiv5.SelectAPSelShift)
	reg := uint16(p.sel&adiv5.SelectAPBankMask) | addr&0x0F
	if err := p.t.OpenAP(apsel); err != nil {
		return 0, err
	}
	glog.V(2).Infof("stlink: ap%d %s %#02x", apsel, dir, reg)
	if dir == adiv5.Write {
		return 0, p.t.WriteDAPRegister(uint16(apsel), reg, value)
	}
	return p.t.ReadDAPRegister(uint16(apsel), reg)
}

func (p *Port) dpAccess(dir adiv5.Direction, addr uint16, value uint32) (uint32, error) {
	glog.V(2).Infof("stlink: dp %s %#02x", dir, addr)
	if dir == adiv5.Write {
		if err := p.t.WriteDAPRegister(debugPortAccess, addr, value); err != nil {
			return 0, err
		}
		if addr == adiv5.DPSelect {
			p.sel = value
		}
		return 0, nil
	}
	return p.t.ReadDAPRegister(debugPortAccess, addr)
}

// Error returns the sticky error flags of CTRL/STAT and clears them through
// ABORT.
func (p *Port) Error() (uint32, error) {
	stat, err := p.t.ReadDAPRegister(debugPortAccess, adiv5.DPCtrlStat)
	if err != nil {
		return 0, err
	}
	if flags := stat & adiv5.CtrlStatStickyErrors; flags != 0 {
		glog.V(1).Infof("stlink: clearing sticky errors %#x", flags)
	}
	if err := p.Abort(adiv5.AbortStickyClear); err != nil {
		return 0, err
	}
	return stat & adiv5.CtrlStatStickyErrors, nil
}

// Abort writes code to the DP ABORT register.
func (p *Port) Abort(code uint32) error {
	return p.t.WriteDAPRegister(debugPortAccess, adiv5.DPAbort, code)
}

// SWDScan enters SWD mode and returns the single DP behind the probe.
func (t *Transport) SWDScan() (*adiv5.DP, error) {
	if err := t.EnterSWD(); err != nil {
		return nil, err
	}
	id, err := t.ReadCoreID()
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("stlink: swd dp idcode 0x%08X", id)
	return adiv5.NewDP(id, NewPort(t), nil), nil
}

// EnterDebug switches the probe into JTAG mode for a chain scan.
func (t *Transport) EnterDebug() error {
	return t.EnterJTAG()
}

// Discover lists the chain reported by the firmware.
func (t *Transport) Discover() ([]*jtag.Device, error) {
	ids, err := t.ReadIDCodes()
	if err != nil {
		return nil, err
	}
	devs := make([]*jtag.Device, len(ids))
	for i, id := range ids {
		devs[i] = &jtag.Device{Index: i, IDCode: id}
	}
	return devs, nil
}

// DebugPort binds a discovered device to the firmware debug port. The probe
// talks to one DP, so only the first device can be claimed.
func (t *Transport) DebugPort(dev *jtag.Device) (adiv5.Port, error) {
	if dev.Index != 0 {
		return nil, fmt.Errorf("stlink: device %d: %w", dev.Index, adiv5.ErrUnsupported)
	}
	return NewPort(t), nil
}
