package jtag

import "fmt"

// Device is one TAP on a scanned chain. Index 0 is the device nearest TDO.
// Probes that report IDCODEs through firmware fill only Index and IDCode.
type Device struct {
	Index  int
	IDCode uint32
	IRLen  int

	// Bits belonging to other devices on either side of this one.
	IRPrescan  int
	IRPostscan int
	DRPrescan  int
	DRPostscan int
}

// Bypassed reports whether the device came out of reset without an IDCODE.
func (d *Device) Bypassed() bool { return d.IDCode == 0 }

func (d *Device) String() string {
	if d.Bypassed() {
		return fmt.Sprintf("#%d (bypass, ir=%d)", d.Index, d.IRLen)
	}
	if d.IRLen == 0 {
		return fmt.Sprintf("#%d idcode=0x%08X", d.Index, d.IDCode)
	}
	return fmt.Sprintf("#%d idcode=0x%08X ir=%d", d.Index, d.IDCode, d.IRLen)
}
