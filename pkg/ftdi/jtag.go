package ftdi

import (
	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// maxShiftBytes is the largest byte count of one clock-data command.
const maxShiftBytes = 0x10000

// Engine clocks JTAG through the MPSSE serial engine of a cable.
type Engine struct {
	c *Cable
}

var _ jtag.Driver = (*Engine)(nil)

// JTAG returns the cable's JTAG driver.
func (c *Cable) JTAG() *Engine { return &Engine{c: c} }

// TMSSeq queues TMS bits, at most seven per command, with TDI held high.
// Nothing is flushed.
func (e *Engine) TMSSeq(tms uint32, ticks int) error {
	glog.V(3).Infof("ftdi: tms %#x/%d", tms, ticks)
	for ticks > 0 {
		n := min(ticks, 7)
		mask := byte(1)<<n - 1
		cmd := []byte{clockTMSOut, byte(n - 1), 0x80 | byte(tms)&mask}
		if _, err := e.c.Write(cmd); err != nil {
			return err
		}
		tms >>= n
		ticks -= n
	}
	return nil
}

// TDITDOSeq shifts whole bytes, then the remaining bits. With final set the
// last bit goes out on a TMS command so the TAP leaves the shift state.
func (e *Engine) TDITDOSeq(tdi []byte, final bool, ticks int) ([]byte, error) {
	size, err := jtag.CheckShift(tdi, ticks)
	if err != nil {
		return nil, err
	}

	body := ticks
	if final {
		body--
	}
	whole, rest := body/8, body%8

	replies := 0
	for off := 0; off < whole; off += maxShiftBytes {
		n := min(whole-off, maxShiftBytes)
		cmd := append([]byte{clockBytesIO, byte(n - 1), byte((n - 1) >> 8)}, tdi[off : off+n]...)
		if _, err := e.c.Write(cmd); err != nil {
			return nil, err
		}
		replies += n
	}
	if rest > 0 {
		if _, err := e.c.Write([]byte{clockBitsIO, byte(rest - 1), tdi[whole]}); err != nil {
			return nil, err
		}
		replies++
	}
	if final {
		last := byte(0x01)
		if getBit(tdi, ticks-1) {
			last |= 0x80
		}
		if _, err := e.c.Write([]byte{clockTMSInOut, 0x00, last}); err != nil {
			return nil, err
		}
		replies++
	}

	resp := make([]byte, replies)
	if err := e.c.ReadBack(resp); err != nil {
		return nil, err
	}

	tdo := make([]byte, size)
	copy(tdo, resp[:whole])
	k := whole
	if rest > 0 {
		tdo[whole] = resp[k] >> (8 - rest)
		k++
	}
	if final && resp[k]&0x80 != 0 {
		i := ticks - 1
		tdo[i/8] |= 1 << (i % 8)
	}
	return tdo, nil
}

// Next clocks one bit and returns TDO.
func (e *Engine) Next(tms, tdi bool) (bool, error) {
	var b byte
	if tms {
		b |= 0x01
	}
	if tdi {
		b |= 0x80
	}
	if _, err := e.c.Write([]byte{clockTMSInOut, 0x00, b}); err != nil {
		return false, err
	}
	var r [1]byte
	if err := e.c.ReadBack(r[:]); err != nil {
		return false, err
	}
	return r[0]&0x80 != 0, nil
}

func getBit(buf []byte, i int) bool {
	return buf[i/8]&(1<<(i%8)) != 0
}
