package ftdi

import (
	"fmt"
	"io"

	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// mpsseSim decodes the MPSSE commands a Cable sends. GET_BITS reports the
// low and high input bytes and clocked bits go to an optional simulated
// chain.
type mpsseSim struct {
	writes  [][]byte
	replies []byte
	low     byte
	high    byte
	chain   *jtag.SimChain
	err     error
}

func (s *mpsseSim) Write(p []byte) (int, error) {
	s.writes = append(s.writes, append([]byte(nil), p...))
	if err := s.exec(p); err != nil {
		s.err = err
		return 0, err
	}
	return len(p), nil
}

func (s *mpsseSim) Read(p []byte) (int, error) {
	if len(s.replies) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.replies)
	s.replies = s.replies[n:]
	return n, nil
}

// sent returns every byte written, in order.
func (s *mpsseSim) sent() []byte {
	var all []byte
	for _, w := range s.writes {
		all = append(all, w...)
	}
	return all
}

func (s *mpsseSim) clock(tms, tdi bool) bool {
	if s.chain == nil {
		return false
	}
	tdo, _ := s.chain.Next(tms, tdi)
	return tdo
}

// clockBits clocks n bits of d and returns the TDO bits shifted in from the
// top of a byte, as the engine reports them.
func (s *mpsseSim) clockBits(n int, d byte, tms bool) byte {
	var in byte
	for i := 0; i < n; i++ {
		if s.clock(tms, d&(1<<i) != 0) {
			in |= 1 << i
		}
	}
	return in << (8 - n)
}

func (s *mpsseSim) exec(p []byte) error {
	for i := 0; i < len(p); {
		switch op := p[i]; op {
		case SetBitsLow, SetBitsHigh, TCKDivisor:
			i += 3
		case GetBitsLow:
			s.replies = append(s.replies, s.low)
			i++
		case GetBitsHigh:
			s.replies = append(s.replies, s.high)
			i++
		case LoopbackOff, SendImmediate, DisableDiv5, Disable3Phase, DisableAdaptCK:
			i++
		case clockTMSOut, clockTMSInOut:
			n, d := int(p[i+1])+1, p[i+2]
			tdi := d&0x80 != 0
			var in byte
			for b := 0; b < n; b++ {
				if s.clock(d&(1<<b) != 0, tdi) {
					in |= 1 << b
				}
			}
			if op == clockTMSInOut {
				s.replies = append(s.replies, in<<(8-n))
			}
			i += 3
		case clockBytesIO:
			n := int(p[i+1]) | int(p[i+2])<<8 + 1
			for _, d := range p[i+3 : i+3+n] {
				s.replies = append(s.replies, s.clockBits(8, d, false))
			}
			i += 3 + n
		case clockBitsIO:
			n := int(p[i+1]) + 1
			s.replies = append(s.replies, s.clockBits(n, p[i+2], false))
			i += 3
		default:
			return fmt.Errorf("mpsse sim: bad opcode %#02x at %d", op, i)
		}
	}
	return nil
}

func newSimCable(desc Descriptor) (*Cable, *mpsseSim) {
	sim := &mpsseSim{}
	return New(desc, sim), sim
}
