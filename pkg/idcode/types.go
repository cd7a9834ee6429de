package idcode

// IDCode is a decoded IEEE 1149.1 IDCODE.
type IDCode struct {
	Raw              uint32 // full IDCODE
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106 continuation count and identity
	HasIDCode        bool   // bit 0 == 1
}

// Bank returns the JEP106 bank, counted from 1.
func (id IDCode) Bank() int { return int(id.ManufacturerCode>>7) + 1 }

// Identity returns the JEP106 identity code within the bank, parity
// stripped.
func (id IDCode) Identity() uint8 { return uint8(id.ManufacturerCode & 0x7F) }

// Valid reports whether the value is a real IDCODE rather than a BYPASS bit
// or a stuck line. 0x7F is reserved as the JEP106 continuation byte.
func (id IDCode) Valid() bool {
	return id.HasIDCode && id.Identity() != 0x7F && id.Raw != 0xFFFFFFFF
}

// Manufacturer is a JEP106 entry.
type Manufacturer struct {
	Code         uint16
	Name         string
	Abbreviation string
}
