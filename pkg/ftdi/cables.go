package ftdi

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultCable is used when no cable is named.
const DefaultCable = "ftdi"

// ErrUnknownCable is returned by lookups of a name no table entry carries.
var ErrUnknownCable = errors.New("ftdi: unknown cable")

// builtin lists the adapters known without a cable file.
var builtin = []Descriptor{
	{
		// Direct connection, pin 6 to RST.
		Name:        "flossjtag",
		Description: "FLOSS-JTAG",
		VendorID:    0x0403,
		ProductID:   0x6010,
		Channel:     ChannelA,
		DataLow:     Pin6 | PinCS | PinDO | PinDI,
		DDRLow:      PinCS | PinDO | PinSK,
		AssertSRST: Transition{
			DataLow: Mask{Clear: Pin6},
			DDRLow:  Mask{Set: Pin6},
		},
		DeassertSRST: Transition{
			DataLow: Mask{Set: Pin6},
			DDRLow:  Mask{Clear: Pin6},
		},
		TMSSense: Sense{Cmd: GetBitsLow, Pin: PinCS},
	},
	{
		// SWD only, DO through 470R to SWDIO. PIN4 flags target power.
		Name:        "usbmate",
		Description: "USBMATE",
		VendorID:    0x0403,
		ProductID:   0x6010,
		Channel:     ChannelB,
		Init: Transition{
			DataLow: Mask{Set: Pin4},
			DDRLow:  Mask{Set: Pin4},
		},
		AssertSRST: Transition{
			DataLow: Mask{Clear: Pin6},
			DDRLow:  Mask{Set: Pin6},
		},
		DeassertSRST: Transition{
			DataLow: Mask{Set: Pin6},
			DDRLow:  Mask{Clear: Pin6},
		},
		VoltageSense: Sense{Cmd: GetBitsLow, Pin: Pin4},
		SWDRead:      Transition{DataLow: Mask{Set: PinDO}},
		SWDWrite:     Transition{DataLow: Mask{Set: PinDO}},
	},
	{
		Name:      "ft232h_resistor_swd",
		VendorID:  0x0403,
		ProductID: 0x6014,
		Channel:   ChannelA,
		DataLow:   PinDO | PinDI | PinCS,
		DDRLow:    PinSK,
		SWDRead:   Transition{DataLow: Mask{Set: PinDO}},
		SWDWrite:  Transition{DataLow: Mask{Set: PinDO}},
	},
	{
		// Buffered. Low PIN6 reads SRST back, high PIN1 drives it and
		// high PIN4 enables the driver.
		Name:         "ftdijtag",
		Description:  "FTDIJTAG",
		VendorID:     0x0403,
		ProductID:    0x6010,
		Channel:      ChannelA,
		DataLow:      Pin4 | PinCS | PinDI | PinDO,
		DDRLow:       PinCS | PinDO | PinSK,
		DataHigh:     Pin4 | Pin3 | Pin2,
		DDRHigh:      Pin4 | Pin3 | Pin2 | Pin1 | Pin0,
		AssertSRST:   Transition{DataHigh: Mask{Clear: Pin3}},
		DeassertSRST: Transition{DataHigh: Mask{Set: Pin3}},
		SRSTSense:    Sense{Cmd: GetBitsLow, Pin: Pin6, ActiveLow: true},
	},
	{
		// Low PIN5 high routes TMS for SWD write, low PIN6 high selects
		// JTAG. High PIN1 drives nSRST.
		Name:      "ftdiswd",
		VendorID:  0x0403,
		ProductID: 0x6010,
		Channel:   ChannelB,
		DataLow:   Pin6 | Pin5 | PinCS | PinDO | PinDI,
		DDRLow:    Pin6 | Pin5 | PinCS | PinDO | PinSK,
		DataHigh:  Pin1 | Pin2,
		AssertSRST: Transition{
			DataHigh: Mask{Clear: Pin1},
			DDRHigh:  Mask{Set: Pin1},
		},
		DeassertSRST: Transition{
			DataHigh: Mask{Set: Pin1},
			DDRHigh:  Mask{Clear: Pin1},
		},
		TMSSense:    Sense{Cmd: GetBitsLow, Pin: PinDI},
		SWDRead:     Transition{DataLow: Mask{Clear: Pin5 | Pin6}},
		SWDWrite:    Transition{DataLow: Mask{Set: Pin5, Clear: Pin6}},
		SWDReadData: PinDO,
	},
	{
		Name:      "olimex",
		VendorID:  0x15b1,
		ProductID: 0x0003,
		Channel:   ChannelA,
		DataLow:   0x08,
		DDRLow:    0x1B,
	},
	{
		Name:         "turtelizer",
		VendorID:     0x0403,
		ProductID:    0xbdc8,
		Channel:      ChannelA,
		DataLow:      0x08,
		DDRLow:       0x1B,
		AssertSRST:   Transition{DataLow: Mask{Set: Pin6}},
		DeassertSRST: Transition{DataLow: Mask{Clear: Pin6}},
		SRSTSense:    Sense{Cmd: GetBitsHigh, Pin: Pin0},
	},
	{
		Name:      "jtaghs1",
		VendorID:  0x0403,
		ProductID: 0xbdc8,
		Channel:   ChannelA,
		DataLow:   0x08,
		DDRLow:    0x1B,
	},
	{
		Name:      "ftdi",
		VendorID:  0x0403,
		ProductID: 0xbdc8,
		Channel:   ChannelA,
		DataLow:   0xA8,
		DDRLow:    0xAB,
		TMSSense:  Sense{Cmd: GetBitsLow, Pin: PinCS},
	},
	{
		Name:      "digilent",
		VendorID:  0x0403,
		ProductID: 0x6014,
		Channel:   ChannelA,
		DataLow:   0x88,
		DDRLow:    0x8B,
		DataHigh:  0x20,
		DDRHigh:   0x3F,
	},
	{
		Name:      "ft232h",
		VendorID:  0x0403,
		ProductID: 0x6014,
		Channel:   ChannelA,
		DataLow:   0x08,
		DDRLow:    0x0B,
		TMSSense:  Sense{Cmd: GetBitsLow, Pin: PinCS},
	},
	{
		Name:      "ft4232h",
		VendorID:  0x0403,
		ProductID: 0x6011,
		Channel:   ChannelA,
		DataLow:   0x08,
		DDRLow:    0x0B,
		TMSSense:  Sense{Cmd: GetBitsLow, Pin: PinCS},
	},
	{
		// PIN4 of the low group enables the JTAG buffer.
		Name:      "arm-usb-ocd-h",
		VendorID:  0x15ba,
		ProductID: 0x002b,
		Channel:   ChannelA,
		DataLow:   0x08,
		DDRLow:    0x1B,
		DataHigh:  0x00,
		DDRHigh:   0x08,
	},
}

// Table is a set of descriptors selected by name. Later entries replace
// earlier ones with the same name.
type Table struct {
	byName map[string]Descriptor
}

// NewTable builds a table from descs.
func NewTable(descs ...Descriptor) *Table {
	t := &Table{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		t.Add(d)
	}
	return t
}

// Builtin returns a table holding the adapters compiled into the package.
func Builtin() *Table { return NewTable(builtin...) }

// Add stores d under its name.
func (t *Table) Add(d Descriptor) { t.byName[d.Name] = d }

// Lookup returns a copy of the named descriptor. An empty name selects
// DefaultCable.
func (t *Table) Lookup(name string) (Descriptor, error) {
	if name == "" {
		name = DefaultCable
	}
	d, ok := t.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w %q", ErrUnknownCable, name)
	}
	return d, nil
}

// Names returns the cable names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a built-in cable.
func Lookup(name string) (Descriptor, error) { return Builtin().Lookup(name) }
