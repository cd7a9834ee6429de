package ftdi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/OpenTraceLab/probelink/pkg/jtag"
	"github.com/OpenTraceLab/probelink/pkg/tap"
)

func TestEngineTMSSeq(t *testing.T) {
	tests := []struct {
		tms   uint32
		ticks int
		want  []byte
	}{
		{0x1F, 5, []byte{0x4B, 0x04, 0x9F}},
		{0x3FF, 10, []byte{0x4B, 0x06, 0xFF, 0x4B, 0x02, 0x87}},
		{0x0, 1, []byte{0x4B, 0x00, 0x80}},
	}

	for _, tt := range tests {
		c, sim := newSimCable(mustLookup(t, "ft232h"))
		if err := c.JTAG().TMSSeq(tt.tms, tt.ticks); err != nil {
			t.Fatalf("TMSSeq returned error: %v", err)
		}
		if len(sim.writes) != 0 {
			t.Fatal("TMSSeq flushed")
		}
		if err := c.Flush(); err != nil {
			t.Fatalf("Flush returned error: %v", err)
		}
		if got := sim.sent(); !bytes.Equal(got, tt.want) {
			t.Errorf("TMSSeq(%#x, %d) sent % X, want % X", tt.tms, tt.ticks, got, tt.want)
		}
	}
}

func TestEngineShiftCommands(t *testing.T) {
	c, sim := newSimCable(mustLookup(t, "ft232h"))

	tdo, err := c.JTAG().TDITDOSeq([]byte{0xAA, 0x55, 0x0F}, true, 20)
	if err != nil {
		t.Fatalf("TDITDOSeq returned error: %v", err)
	}
	if len(tdo) != 3 {
		t.Fatalf("tdo is %d bytes, want 3", len(tdo))
	}
	want := []byte{
		0x39, 0x01, 0x00, 0xAA, 0x55,
		0x3B, 0x02, 0x0F,
		0x6B, 0x00, 0x81,
		SendImmediate,
	}
	if got := sim.sent(); !bytes.Equal(got, want) {
		t.Fatalf("sent % X, want % X", got, want)
	}
}

func TestEngineRejectsShortBuffer(t *testing.T) {
	c, _ := newSimCable(mustLookup(t, "ft232h"))
	if _, err := c.JTAG().TDITDOSeq([]byte{0xFF}, false, 9); err == nil {
		t.Fatal("9-bit shift of a 1-byte buffer succeeded")
	}
}

func TestEngineDrivesChain(t *testing.T) {
	var updated uint64
	arm := &jtag.SimDevice{
		IDCode:   0x4BA00477,
		IRLen:    4,
		IDCodeIR: 0xE,
		Registers: map[uint32]*jtag.SimRegister{
			0xA: {
				Len:     35,
				Capture: func() uint64 { return 0x5_1234_5678 },
				Update:  func(v uint64) { updated = v },
			},
		},
	}
	stm := &jtag.SimDevice{IDCode: 0x06413041, IRLen: 5, IDCodeIR: 0x1}

	c, sim := newSimCable(mustLookup(t, "ft232h"))
	sim.chain = jtag.NewSimChain(arm, stm)
	ch := jtag.NewChain(c.JTAG())

	devs, err := ch.Scan(nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(devs) != 2 || devs[0].IDCode != 0x4BA00477 || devs[1].IDCode != 0x06413041 {
		t.Fatalf("devices = %v", devs)
	}
	if devs[0].IRLen != 4 || devs[1].IRLen != 5 {
		t.Fatalf("ir lengths = %d, %d", devs[0].IRLen, devs[1].IRLen)
	}

	if err := ch.WriteIR(devs[0], 0xA); err != nil {
		t.Fatalf("WriteIR returned error: %v", err)
	}
	// The walk to Run-Test/Idle is still queued.
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if arm.IR() != 0xA || stm.IR() != 0x1F {
		t.Fatalf("IR = %#x, %#x", arm.IR(), stm.IR())
	}

	tdi := make([]byte, 8)
	binary.LittleEndian.PutUint64(tdi, 0x4_0000_000B)
	tdo, err := ch.ShiftDR(devs[0], tdi[:5], 35)
	if err != nil {
		t.Fatalf("ShiftDR returned error: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	buf := make([]byte, 8)
	copy(buf, tdo)
	if got := binary.LittleEndian.Uint64(buf); got != 0x5_1234_5678 {
		t.Fatalf("captured %#x", got)
	}
	if updated != 0x4_0000_000B {
		t.Fatalf("updated %#x", updated)
	}
	if sim.chain.State() != tap.RunTestIdle {
		t.Fatalf("chain left in %s", sim.chain.State())
	}
	if sim.err != nil {
		t.Fatalf("sim: %v", sim.err)
	}
}
