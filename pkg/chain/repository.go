package chain

import (
	"fmt"
)

// Handler claims a matched device, usually by binding a debug port to it.
// Returning an error wrapping adiv5.ErrUnsupported leaves the device
// unclaimed without failing the scan.
type Handler func(link Link, dev *Device) error

// Entry is one row of the known-device table. A device matches when its
// IDCODE masked by Mask equals Value.
type Entry struct {
	Value       uint32
	Mask        uint32
	Description string
	Handler     Handler
}

// Matches reports whether id belongs to the entry.
func (e Entry) Matches(id uint32) bool {
	return id&e.Mask == e.Value
}

// knownDevices is ordered from most to least specific; the first match wins.
var knownDevices = []Entry{
	{Value: 0x0BA00477, Mask: 0x0FFF0FFF, Description: "ARM Limited: ADIv5 JTAG-DP port.", Handler: ADIv5Handler},
	{Value: 0x06410041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, Medium density."},
	{Value: 0x06412041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, Low density."},
	{Value: 0x06414041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, High density."},
	{Value: 0x06416041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32L."},
	{Value: 0x06418041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, Connectivity Line."},
	{Value: 0x06420041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, Value Line."},
	{Value: 0x06428041, Mask: 0x0FFFFFFF, Description: "ST Microelectronics: STM32, Value Line, High density."},
	{Value: 0x06411041, Mask: 0xFFFFFFFF, Description: "ST Microelectronics: STM32F2xx."},
	{Value: 0x06422041, Mask: 0xFFFFFFFF, Description: "ST Microelectronics: STM32F3xx."},
	{Value: 0x06413041, Mask: 0xFFFFFFFF, Description: "ST Microelectronics: STM32F4xx."},
	{Value: 0x00000477, Mask: 0x00000FFF, Description: "Unknown ARM."},
	{Value: 0x00000093, Mask: 0x00000FFF, Description: "Xilinx."},
	{Value: 0x0000063D, Mask: 0x00000FFF, Description: "Xambala: RVDBG013."},
	{Value: 0x000007A3, Mask: 0x00000FFF, Description: "Gigadevice BSD."},
}

// UnknownDevice describes devices no entry matches.
const UnknownDevice = "Unknown"

// KnownDevices returns a copy of the built-in table.
func KnownDevices() []Entry {
	out := make([]Entry, len(knownDevices))
	copy(out, knownDevices)
	return out
}

// Table is an ordered known-device table.
type Table struct {
	entries []Entry
}

// NewTable builds a table searched in the order given.
func NewTable(entries ...Entry) *Table {
	t := &Table{}
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// DefaultTable returns a table holding the built-in entries.
func DefaultTable() *Table { return NewTable(knownDevices...) }

// Add appends e. Entries added later only see IDCODEs no earlier entry took.
func (t *Table) Add(e Entry) {
	t.entries = append(t.entries, e)
}

// AddPattern appends an entry from a 32-digit binary IDCODE pattern where X
// marks don't-care bits, as written in BSDL IDCODE_REGISTER attributes.
func (t *Table) AddPattern(pattern, description string, h Handler) error {
	value, mask, err := parseIDCode(pattern)
	if err != nil {
		return err
	}
	t.Add(Entry{Value: value, Mask: mask, Description: description, Handler: h})
	return nil
}

// Lookup returns the first entry matching id.
func (t *Table) Lookup(id uint32) (Entry, bool) {
	for _, e := range t.entries {
		if e.Matches(id) {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns the table rows in search order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (e Entry) String() string {
	return fmt.Sprintf("0x%08X/0x%08X %s", e.Value, e.Mask, e.Description)
}
