package jtag

import (
	"fmt"

	"github.com/OpenTraceLab/probelink/pkg/tap"
)

// SimRegister is a data register of a simulated TAP. Capture supplies the
// value loaded in Capture-DR and Update receives the value shifted in.
type SimRegister struct {
	Len     int
	Capture func() uint64
	Update  func(v uint64)
}

// SimDevice describes one simulated TAP. A zero IDCode makes the device come
// out of reset in BYPASS.
type SimDevice struct {
	IDCode    uint32
	IRLen     int
	IRCapture uint32 // defaults to 0b01
	IDCodeIR  uint32 // instruction selected by reset when IDCode is set
	Registers map[uint32]*SimRegister

	ir    uint32
	irSR  uint64
	dr    *SimRegister
	drLen int
	drSR  uint64
}

// IR returns the instruction currently latched in the device.
func (d *SimDevice) IR() uint32 { return d.ir }

// SimChain is an in-memory Driver emulating TAP controllers wired TDI to TDO.
// Devices[0] is nearest TDO. An empty chain loops TDI back to TDO.
type SimChain struct {
	Devices []*SimDevice

	state  tap.State
	clocks int
	resets int
}

var _ Driver = (*SimChain)(nil)

// NewSimChain builds a chain in Test-Logic-Reset.
func NewSimChain(devs ...*SimDevice) *SimChain {
	s := &SimChain{Devices: devs, state: tap.TestLogicReset}
	s.reset()
	return s
}

// State returns the emulated TAP state.
func (s *SimChain) State() tap.State { return s.state }

// Clocks returns the number of TCK cycles seen.
func (s *SimChain) Clocks() int { return s.clocks }

// Resets returns how many times the TAPs entered Test-Logic-Reset.
func (s *SimChain) Resets() int { return s.resets }

func (s *SimChain) TMSSeq(tms uint32, ticks int) error {
	if ticks < 0 || ticks > 32 {
		return fmt.Errorf("jtag: sim: invalid tms length %d", ticks)
	}
	for i := 0; i < ticks; i++ {
		s.clock(tms&(1<<i) != 0, true)
	}
	return nil
}

func (s *SimChain) TDITDOSeq(tdi []byte, final bool, ticks int) ([]byte, error) {
	n, err := CheckShift(tdi, ticks)
	if err != nil {
		return nil, err
	}
	tdo := make([]byte, n)
	for i := 0; i < ticks; i++ {
		setBit(tdo, i, s.clock(final && i == ticks-1, bit(tdi, i)))
	}
	return tdo, nil
}

func (s *SimChain) Next(tms, tdi bool) (bool, error) {
	return s.clock(tms, tdi), nil
}

func (s *SimChain) clock(tms, tdi bool) bool {
	s.clocks++
	tdo := true
	switch s.state {
	case tap.CaptureIR:
		for _, d := range s.Devices {
			capture := d.IRCapture
			if capture == 0 {
				capture = 0x1
			}
			d.irSR = uint64(capture)
		}
	case tap.ShiftIR:
		tdo = s.shiftIR(tdi)
	case tap.CaptureDR:
		for _, d := range s.Devices {
			d.selectDR()
			d.drSR = 0
			if d.dr != nil && d.dr.Capture != nil {
				d.drSR = d.dr.Capture()
			}
		}
	case tap.ShiftDR:
		tdo = s.shiftDR(tdi)
	}

	prev := s.state
	s.state = tap.Next(s.state, tms)
	switch s.state {
	case tap.TestLogicReset:
		if prev != tap.TestLogicReset {
			s.reset()
		}
	case tap.UpdateIR:
		for _, d := range s.Devices {
			d.ir = uint32(d.irSR & mask(d.IRLen))
		}
	case tap.UpdateDR:
		for _, d := range s.Devices {
			if d.dr != nil && d.dr.Update != nil {
				d.dr.Update(d.drSR & mask(d.drLen))
			}
		}
	}
	return tdo
}

func (s *SimChain) shiftIR(tdi bool) bool {
	in := tdi
	for i := len(s.Devices) - 1; i >= 0; i-- {
		d := s.Devices[i]
		out := d.irSR&1 != 0
		d.irSR >>= 1
		if in {
			d.irSR |= 1 << (d.IRLen - 1)
		}
		in = out
	}
	return in
}

func (s *SimChain) shiftDR(tdi bool) bool {
	in := tdi
	for i := len(s.Devices) - 1; i >= 0; i-- {
		d := s.Devices[i]
		out := d.drSR&1 != 0
		d.drSR >>= 1
		if in {
			d.drSR |= 1 << (d.drLen - 1)
		}
		in = out
	}
	return in
}

func (s *SimChain) reset() {
	s.resets++
	for _, d := range s.Devices {
		d.ir = uint32(mask(d.IRLen))
		if d.IDCode != 0 {
			d.ir = d.IDCodeIR
		}
	}
}

func (d *SimDevice) selectDR() {
	d.dr = nil
	d.drLen = 1
	if d.IDCode != 0 && d.ir == d.IDCodeIR {
		id := d.IDCode
		d.dr = &SimRegister{Len: 32, Capture: func() uint64 { return uint64(id) }}
		d.drLen = 32
		return
	}
	if r, ok := d.Registers[d.ir]; ok && r.Len > 0 {
		d.dr = r
		d.drLen = r.Len
	}
}

func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<n - 1
}
