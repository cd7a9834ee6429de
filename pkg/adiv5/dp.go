package adiv5

import (
	"errors"

	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// Port is the transport side of a debug port. LowAccess performs exactly one
// register transaction and must not retry: a WAIT acknowledgement is
// reported as ErrTransient, a failed one as ErrFault.
type Port interface {
	LowAccess(dir Direction, addr uint16, value uint32) (uint32, error)
}

// Reader is implemented by transports that pipeline register reads their own
// way. Without it DP.Read issues the AP request followed by an RDBUFF read.
type Reader interface {
	Read(addr uint16) (uint32, error)
}

// FaultClearer is implemented by transports that reach CTRL/STAT and ABORT,
// such as JTAG-DP on a bit-banged cable or the ST-Link DP register commands.
type FaultClearer interface {
	Error() (uint32, error)
	Abort(code uint32) error
}

// DP is one debug access port bound to a single transport for its lifetime.
// A rescan replaces DPs rather than mutating them.
type DP struct {
	IDCode uint32

	dev   *jtag.Device
	port  Port
	fault bool
}

// NewDP binds a debug port to its transport. dev is the owning chain entry
// and may be nil for single-device links such as SWD.
func NewDP(idcode uint32, port Port, dev *jtag.Device) *DP {
	return &DP{IDCode: idcode, dev: dev, port: port}
}

// Device returns the chain entry the port belongs to, or nil.
func (dp *DP) Device() *jtag.Device { return dp.dev }

// Transport returns the bound port.
func (dp *DP) Transport() Port { return dp.port }

// Fault reports the sticky fault flag.
func (dp *DP) Fault() bool { return dp.fault }

// Read returns the contents of a DP or AP register. AP reads are posted, so
// the value is collected from RDBUFF unless the transport reads its own way.
// A fault yields 0.
func (dp *DP) Read(addr uint16) (uint32, error) {
	if r, ok := dp.port.(Reader); ok {
		return dp.observe(r.Read(addr))
	}
	if IsAP(addr) {
		if _, err := dp.LowAccess(Read, addr, 0); err != nil {
			return 0, err
		}
		return dp.LowAccess(Read, DPRdBuff, 0)
	}
	return dp.LowAccess(Read, addr, 0)
}

// Write stores value into a DP or AP register.
func (dp *DP) Write(addr uint16, value uint32) error {
	_, err := dp.LowAccess(Write, addr, value)
	return err
}

// LowAccess performs one register transaction on the bound transport.
func (dp *DP) LowAccess(dir Direction, addr uint16, value uint32) (uint32, error) {
	return dp.observe(dp.port.LowAccess(dir, addr, value))
}

// Error reads and clears the sticky error flags and, on success, the fault
// flag. Transports without a FaultClearer return ErrUnsupported and the
// caller falls back to the transport's own fault clear.
func (dp *DP) Error() (uint32, error) {
	fc, ok := dp.port.(FaultClearer)
	if !ok {
		return 0, ErrUnsupported
	}
	flags, err := fc.Error()
	if err != nil {
		return 0, dp.mark(err)
	}
	dp.fault = false
	return flags, nil
}

// Abort writes code to the DP ABORT register.
func (dp *DP) Abort(code uint32) error {
	fc, ok := dp.port.(FaultClearer)
	if !ok {
		return ErrUnsupported
	}
	return fc.Abort(code)
}

func (dp *DP) observe(v uint32, err error) (uint32, error) {
	if err != nil {
		return 0, dp.mark(err)
	}
	return v, nil
}

func (dp *DP) mark(err error) error {
	if errors.Is(err, ErrFault) {
		dp.fault = true
	}
	return err
}
