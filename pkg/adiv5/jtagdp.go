package adiv5

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// JTAG-DP instruction register values.
const (
	IRAbort uint32 = 0x8
	IRDPAcc uint32 = 0xA
	IRAPAcc uint32 = 0xB
)

// JTAG-DP acknowledgements in the low three bits of a DPACC/APACC scan.
const (
	jtagAckWait uint8 = 0x1
	jtagAckOK   uint8 = 0x2
)

const jtagScanBits = 35

// Scanner shifts instruction and data registers of one device on a JTAG
// chain while the other devices sit in BYPASS.
type Scanner interface {
	WriteIR(dev *jtag.Device, ir uint32) error
	ShiftDR(dev *jtag.Device, tdi []byte, ticks int) ([]byte, error)
}

// JTAGPort drives a JTAG-DP through DPACC/APACC scans. Results of a scan are
// returned by the following scan, so reads always collect from RDBUFF.
type JTAGPort struct {
	chain Scanner
	dev   *jtag.Device
}

// NewJTAGPort returns the JTAG-DP transport for dev.
func NewJTAGPort(chain Scanner, dev *jtag.Device) *JTAGPort {
	return &JTAGPort{chain: chain, dev: dev}
}

var (
	_ Port         = (*JTAGPort)(nil)
	_ Reader       = (*JTAGPort)(nil)
	_ FaultClearer = (*JTAGPort)(nil)
)

// Read posts the request and collects the result from RDBUFF, for DP and AP
// registers alike.
func (p *JTAGPort) Read(addr uint16) (uint32, error) {
	if _, err := p.LowAccess(Read, addr, 0); err != nil {
		return 0, err
	}
	return p.LowAccess(Read, DPRdBuff, 0)
}

// LowAccess shifts one 35-bit request through DPACC or APACC. The returned
// value is the result of the previous transaction.
func (p *JTAGPort) LowAccess(dir Direction, addr uint16, value uint32) (uint32, error) {
	ir := IRDPAcc
	if IsAP(addr) {
		ir = IRAPAcc
	}
	request := uint64(value)<<3 | uint64((addr>>1)&0x6) | uint64(dir&1)

	if err := p.chain.WriteIR(p.dev, ir); err != nil {
		return 0, fmt.Errorf("adiv5: jtag-dp ir: %w", err)
	}
	tdo, err := p.chain.ShiftDR(p.dev, scanBytes(request), jtagScanBits)
	if err != nil {
		return 0, fmt.Errorf("adiv5: jtag-dp dr: %w", err)
	}
	response := scanValue(tdo)
	ack := uint8(response & 0x7)
	glog.V(3).Infof("jtag-dp %s addr=%#03x value=%#08x ack=%d", dir, addr, value, ack)

	switch ack {
	case jtagAckOK:
		return uint32(response >> 3), nil
	case jtagAckWait:
		return 0, fmt.Errorf("adiv5: jtag-dp %s %#03x: %w", dir, addr, ErrTransient)
	default:
		return 0, fmt.Errorf("adiv5: jtag-dp %s %#03x: invalid ack %#x: %w", dir, addr, ack, ErrFault)
	}
}

// Error returns the sticky error flags of CTRL/STAT and clears them.
func (p *JTAGPort) Error() (uint32, error) {
	if _, err := p.LowAccess(Read, DPCtrlStat, 0); err != nil {
		return 0, err
	}
	stat, err := p.LowAccess(Write, DPCtrlStat, 0xF0000032)
	if err != nil {
		return 0, err
	}
	return stat & 0x32, nil
}

// Abort shifts code into the ABORT register.
func (p *JTAGPort) Abort(code uint32) error {
	if err := p.chain.WriteIR(p.dev, IRAbort); err != nil {
		return fmt.Errorf("adiv5: jtag-dp ir: %w", err)
	}
	if _, err := p.chain.ShiftDR(p.dev, scanBytes(uint64(code)<<3), jtagScanBits); err != nil {
		return fmt.Errorf("adiv5: jtag-dp abort: %w", err)
	}
	return nil
}

func scanBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf[:(jtagScanBits+7)/8]
}

func scanValue(tdo []byte) uint64 {
	buf := make([]byte, 8)
	copy(buf, tdo)
	return binary.LittleEndian.Uint64(buf) & (1<<jtagScanBits - 1)
}
