package ftdi

import (
	"fmt"
	"strings"
)

// Mask changes some bits of a pin byte: Set bits are forced high, then Clear
// bits forced low.
type Mask struct {
	Set   uint8
	Clear uint8
}

// Apply returns b with the mask applied.
func (m Mask) Apply(b uint8) uint8 { return (b | m.Set) &^ m.Clear }

// Empty reports whether the mask changes nothing.
func (m Mask) Empty() bool { return m.Set == 0 && m.Clear == 0 }

func (m Mask) String() string {
	var parts []string
	if m.Set != 0 {
		parts = append(parts, fmt.Sprintf("+%#02x", m.Set))
	}
	if m.Clear != 0 {
		parts = append(parts, fmt.Sprintf("-%#02x", m.Clear))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// Transition is one pin change applied to the tracked data and direction
// bytes of the low (ADBUS) and high (ACBUS) groups. A group whose two masks
// are empty is left alone.
type Transition struct {
	DataLow  Mask
	DDRLow   Mask
	DataHigh Mask
	DDRHigh  Mask
}

// Empty reports whether the transition touches no group.
func (t Transition) Empty() bool { return !t.low() && !t.high() }

func (t Transition) low() bool  { return !t.DataLow.Empty() || !t.DDRLow.Empty() }
func (t Transition) high() bool { return !t.DataHigh.Empty() || !t.DDRHigh.Empty() }

// Sense names a pin read back with a GET_BITS command.
type Sense struct {
	Cmd       byte
	Pin       uint8
	ActiveLow bool
}

// Defined reports whether the sense is described.
func (s Sense) Defined() bool { return s.Cmd != 0 && s.Pin != 0 }

// Active interprets a byte returned by Cmd.
func (s Sense) Active(b uint8) bool {
	if s.ActiveLow {
		return b&s.Pin == 0
	}
	return b&s.Pin != 0
}

// Channel selects one MPSSE interface of a multi-channel chip.
type Channel uint8

const (
	ChannelA Channel = 1 + iota
	ChannelB
	ChannelC
	ChannelD
)

func (c Channel) String() string {
	if c < ChannelA || c > ChannelD {
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
	return string(rune('A' + c - ChannelA))
}

// endpoints returns the bulk OUT and IN endpoint numbers of the channel.
func (c Channel) endpoints() (out, in int) {
	n := int(c - ChannelA)
	return 2 + 2*n, 1 + 2*n
}

// Descriptor is the wiring of one adapter. The pin bytes are the idle state
// loaded when a session opens.
type Descriptor struct {
	Name        string
	Description string
	VendorID    uint16
	ProductID   uint16
	Channel     Channel

	DataLow  uint8
	DDRLow   uint8
	DataHigh uint8
	DDRHigh  uint8

	Init         Transition
	AssertSRST   Transition
	DeassertSRST Transition
	SRSTSense    Sense
	VoltageSense Sense
	TMSSense     Sense

	SWDRead     Transition
	SWDWrite    Transition
	SWDReadData uint8
}

// CanReset reports whether the adapter drives SRST.
func (d *Descriptor) CanReset() bool {
	return !d.AssertSRST.Empty() && !d.DeassertSRST.Empty()
}

// ResetSense returns how SRST is read back: the dedicated sense when wired,
// else the pin driven by the assert transition.
func (d *Descriptor) ResetSense() (Sense, bool) {
	if d.SRSTSense.Defined() {
		return d.SRSTSense, true
	}
	if s, ok := senseFromMask(GetBitsLow, d.AssertSRST.DataLow); ok {
		return s, true
	}
	return senseFromMask(GetBitsHigh, d.AssertSRST.DataHigh)
}

// senseFromMask reads a driven pin: a cleared bit asserts low, a set bit
// asserts high.
func senseFromMask(cmd byte, m Mask) (Sense, bool) {
	switch {
	case m.Clear != 0:
		return Sense{Cmd: cmd, Pin: m.Clear, ActiveLow: true}, true
	case m.Set != 0:
		return Sense{Cmd: cmd, Pin: m.Set}, true
	}
	return Sense{}, false
}

// USBID formats the vendor and product IDs.
func (d *Descriptor) USBID() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
}
