// Package adiv5 models an ARM Debug Interface v5 debug port (DP) as seen by
// the protocol layer above a probe: register reads and writes, the sticky
// fault flag, and the optional fault-clear hooks a transport may expose.
package adiv5

import "errors"

// Sentinel errors shared by every transport. Backends wrap these so callers
// can classify failures with errors.Is.
var (
	// ErrTransient reports a WAIT acknowledgement. No value was produced and
	// the caller may retry the whole operation.
	ErrTransient = errors.New("adiv5: wait response")
	// ErrFault reports a protocol-level failure. The DP fault flag is set.
	ErrFault = errors.New("adiv5: fault response")
	// ErrLinkFailure reports a broken link: timeouts, cancelled transfers,
	// halted endpoints.
	ErrLinkFailure = errors.New("adiv5: link failure")
	// ErrUnsupported reports an operation the bound transport or cable
	// cannot perform.
	ErrUnsupported = errors.New("adiv5: not supported by transport")
)

// Direction selects a read or write register transaction. The values match
// the RnW bit of an ADIv5 request.
type Direction uint8

const (
	Write Direction = 0
	Read  Direction = 1
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// APnDP marks an address as an access port register.
const APnDP uint16 = 0x100

// Debug port register addresses.
const (
	DPIDCode   uint16 = 0x0 // read
	DPAbort    uint16 = 0x0 // write
	DPCtrlStat uint16 = 0x4
	DPSelect   uint16 = 0x8
	DPRdBuff   uint16 = 0xC
)

// AP returns the address of access port register reg.
func AP(reg uint8) uint16 {
	return APnDP | uint16(reg)
}

// IsAP reports whether addr targets an access port register.
func IsAP(addr uint16) bool {
	return addr&APnDP != 0
}

// CTRL/STAT bits.
const (
	CtrlStatOrunDetect   uint32 = 1 << 0
	CtrlStatStickyOrun   uint32 = 1 << 1
	CtrlStatTrnMode      uint32 = 3 << 2
	CtrlStatStickyCmp    uint32 = 1 << 4
	CtrlStatStickyErr    uint32 = 1 << 5
	CtrlStatReadOK       uint32 = 1 << 6
	CtrlStatWDataErr     uint32 = 1 << 7
	CtrlStatCDbgRstReq   uint32 = 1 << 26
	CtrlStatCDbgRstAck   uint32 = 1 << 27
	CtrlStatCDbgPwrUpReq uint32 = 1 << 28
	CtrlStatCDbgPwrUpAck uint32 = 1 << 29
	CtrlStatCSysPwrUpReq uint32 = 1 << 30
	CtrlStatCSysPwrUpAck uint32 = 1 << 31
)

// CtrlStatStickyErrors collects the sticky error flags cleared through ABORT.
const CtrlStatStickyErrors = CtrlStatStickyOrun | CtrlStatStickyCmp | CtrlStatStickyErr | CtrlStatWDataErr

// ABORT bits.
const (
	AbortDAPAbort   uint32 = 1 << 0
	AbortStkCmpClr  uint32 = 1 << 1
	AbortStkErrClr  uint32 = 1 << 2
	AbortWdErrClr   uint32 = 1 << 3
	AbortOrunErrClr uint32 = 1 << 4
)

// AbortStickyClear clears every sticky error flag of CTRL/STAT.
const AbortStickyClear = AbortStkCmpClr | AbortStkErrClr | AbortWdErrClr | AbortOrunErrClr

// SELECT fields.
const (
	SelectAPSelShift        = 24
	SelectAPBankMask uint32 = 0xF0
)
