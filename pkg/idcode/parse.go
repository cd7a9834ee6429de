package idcode

import "fmt"

// ParseIDCode splits a raw 32-bit IDCODE into its fields.
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		HasIDCode:        (raw & 0x1) == 0x1,
	}
}

func (id IDCode) String() string {
	if !id.Valid() {
		return fmt.Sprintf("0x%08X (no IDCODE)", id.Raw)
	}
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X %s part 0x%04X rev %d", id.Raw, m.Abbreviation, id.PartNumber, id.Version)
}

// Describe formats raw for listings.
func Describe(raw uint32) string { return ParseIDCode(raw).String() }
