package chain

import "testing"

func TestParseIDCode(t *testing.T) {
	tests := []struct {
		pattern     string
		value, mask uint32
		wantErr     bool
	}{
		{"0000_0110_0100_0001_0011_0000_0100_0001", 0x06413041, 0xFFFFFFFF, false},
		{"XXXX0110010000010011000001000001", 0x06413041, 0x0FFFFFFF, false},
		{"0000000000000000000000000000xxxx", 0x0, 0xFFFFFFF0, false},
		{"0101", 0, 0, true},
		{"000000000000000000000000000000001", 0, 0, true},
		{"XXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX", 0, 0, true},
		{"0000000000000000000000000000000Z", 0, 0, true},
	}
	for _, tt := range tests {
		value, mask, err := parseIDCode(tt.pattern)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseIDCode(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
		}
		if !tt.wantErr && (value != tt.value || mask != tt.mask) {
			t.Errorf("parseIDCode(%q) = %#08x/%#08x, want %#08x/%#08x", tt.pattern, value, mask, tt.value, tt.mask)
		}
	}
}

func TestParseEntry(t *testing.T) {
	e, err := ParseEntry("0x4BA00477 = bench DP")
	if err != nil {
		t.Fatalf("ParseEntry returned error: %v", err)
	}
	if e.Value != 0x4BA00477 || e.Mask != 0xFFFFFFFF || e.Description != "bench DP" || e.Handler != nil {
		t.Fatalf("entry = %v", e)
	}

	e, err = ParseEntry("XXXX0110010000010011000001000001=STM32F4 any revision")
	if err != nil {
		t.Fatalf("ParseEntry returned error: %v", err)
	}
	if !e.Matches(0x16413041) || e.Matches(0x06413042) {
		t.Fatalf("wildcard entry %v matches wrongly", e)
	}

	for _, bad := range []string{"0x4BA00477", "0x123456789=big", "0xZZ=x", "0101=short", "=x"} {
		if _, err := ParseEntry(bad); err == nil {
			t.Errorf("ParseEntry(%q) succeeded", bad)
		}
	}
}

func TestTableAddPattern(t *testing.T) {
	table := NewTable()
	if err := table.AddPattern("XXXX0110010000010011000001000001", "stm32f4", nil); err != nil {
		t.Fatalf("AddPattern returned error: %v", err)
	}
	if err := table.AddPattern("bad", "x", nil); err == nil {
		t.Fatal("AddPattern accepted a bad pattern")
	}
	if _, ok := table.Lookup(0x26413041); !ok {
		t.Fatal("pattern did not match")
	}
	if _, ok := table.Lookup(0x4BA00477); ok {
		t.Fatal("empty table matched")
	}
	if len(table.Entries()) != 1 {
		t.Fatalf("entries = %v", table.Entries())
	}
}
