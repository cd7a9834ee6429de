// Package jtag shifts instruction and data registers through a chain of TAP
// controllers on top of a bit-level Driver.
package jtag

import (
	"errors"
	"fmt"
)

// Driver clocks TMS and TDI on a physical cable. Bits are packed LSB first.
type Driver interface {
	// TMSSeq clocks ticks bits of tms with TDI held high.
	TMSSeq(tms uint32, ticks int) error
	// TDITDOSeq shifts ticks bits of tdi with TMS low and returns the bits
	// seen on TDO. When final is set TMS is raised on the last bit.
	TDITDOSeq(tdi []byte, final bool, ticks int) ([]byte, error)
	// Next clocks a single bit and returns TDO.
	Next(tms, tdi bool) (bool, error)
}

// ErrChainBroken reports a chain scan whose readback makes no sense, for
// example TDO stuck low.
var ErrChainBroken = errors.New("jtag: chain integrity check failed")

// CheckShift validates a TDI buffer against a shift length and returns the
// number of bytes the shift covers.
func CheckShift(tdi []byte, ticks int) (int, error) {
	if ticks <= 0 {
		return 0, fmt.Errorf("jtag: ticks must be positive, got %d", ticks)
	}
	required := (ticks + 7) / 8
	if len(tdi) < required {
		return 0, fmt.Errorf("jtag: tdi buffer too short, need %d bytes", required)
	}
	return required, nil
}

func bit(buf []byte, i int) bool {
	return buf[i/8]&(1<<(uint(i)%8)) != 0
}

func setBit(buf []byte, i int, v bool) {
	if v {
		buf[i/8] |= 1 << (uint(i) % 8)
	} else {
		buf[i/8] &^= 1 << (uint(i) % 8)
	}
}

func ones(ticks int) []byte {
	buf := make([]byte, (ticks+7)/8)
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}
