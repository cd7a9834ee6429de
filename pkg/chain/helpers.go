package chain

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIDCode turns a binary IDCODE pattern, most significant bit first, into
// a value and care mask. Underscores and spaces are ignored.
func parseIDCode(pattern string) (uint32, uint32, error) {
	var value, mask uint32
	digits := 0
	for _, r := range pattern {
		switch r {
		case '_', ' ':
			continue
		case '0', '1', 'X', 'x':
		default:
			return 0, 0, fmt.Errorf("chain: invalid IDCODE digit %q", r)
		}
		digits++
		value <<= 1
		mask <<= 1
		switch r {
		case '1':
			value |= 1
			mask |= 1
		case '0':
			mask |= 1
		}
	}
	if digits != 32 {
		return 0, 0, fmt.Errorf("chain: IDCODE must be 32 bits, got %d", digits)
	}
	if mask == 0 {
		return 0, 0, fmt.Errorf("chain: IDCODE mask is zero")
	}
	return value, mask, nil
}

// ParseEntry reads a "PATTERN=description" pair naming an extra device. The
// pattern is either a 32-digit binary string with X wildcards or an exact
// hexadecimal IDCODE.
func ParseEntry(s string) (Entry, error) {
	pattern, desc, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(desc) == "" {
		return Entry{}, fmt.Errorf("chain: device %q: want PATTERN=description", s)
	}
	pattern = strings.TrimSpace(pattern)
	desc = strings.TrimSpace(desc)

	if hex, isHex := strings.CutPrefix(strings.ToLower(pattern), "0x"); isHex {
		id, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Entry{}, fmt.Errorf("chain: device %q: %w", s, err)
		}
		return Entry{Value: uint32(id), Mask: 0xFFFFFFFF, Description: desc}, nil
	}
	value, mask, err := parseIDCode(pattern)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Value: value, Mask: mask, Description: desc}, nil
}
