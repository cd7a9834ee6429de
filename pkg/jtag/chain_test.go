package jtag

import (
	"bytes"
	"errors"
	"testing"

	"github.com/OpenTraceLab/probelink/pkg/tap"
)

func armDevice() *SimDevice {
	return &SimDevice{IDCode: 0x4BA00477, IRLen: 4, IDCodeIR: 0xE}
}

func TestChainScanDetectsGeometry(t *testing.T) {
	sim := NewSimChain(
		armDevice(),
		&SimDevice{IRLen: 5},
		&SimDevice{IDCode: 0x06413041, IRLen: 5, IDCodeIR: 0x1},
	)
	c := NewChain(sim)

	devs, err := c.Scan(nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(devs) != 3 {
		t.Fatalf("found %d devices, want 3", len(devs))
	}

	want := []Device{
		{Index: 0, IDCode: 0x4BA00477, IRLen: 4, IRPrescan: 0, IRPostscan: 10, DRPrescan: 0, DRPostscan: 2},
		{Index: 1, IDCode: 0, IRLen: 5, IRPrescan: 4, IRPostscan: 5, DRPrescan: 1, DRPostscan: 1},
		{Index: 2, IDCode: 0x06413041, IRLen: 5, IRPrescan: 9, IRPostscan: 0, DRPrescan: 2, DRPostscan: 0},
	}
	for i, w := range want {
		if *devs[i] != w {
			t.Errorf("device %d = %+v, want %+v", i, *devs[i], w)
		}
	}
	if !devs[1].Bypassed() {
		t.Error("device 1 should report bypass")
	}
	if c.State() != tap.RunTestIdle || sim.State() != tap.RunTestIdle {
		t.Fatalf("chain left in %s (sim %s), want Run-Test/Idle", c.State(), sim.State())
	}
}

func TestChainScanEmpty(t *testing.T) {
	c := NewChain(NewSimChain())
	devs, err := c.Scan(nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(devs) != 0 || len(c.Devices()) != 0 {
		t.Fatalf("empty chain reported %d devices", len(devs))
	}
}

func TestChainScanFixedIRLengths(t *testing.T) {
	sim := NewSimChain(armDevice(), &SimDevice{IDCode: 0x0BA01477, IRLen: 4, IDCodeIR: 0xE})
	devs, err := NewChain(sim).Scan([]int{4, 4})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if devs[0].IDCode != 0x4BA00477 || devs[1].IDCode != 0x0BA01477 {
		t.Fatalf("idcodes = %#x %#x", devs[0].IDCode, devs[1].IDCode)
	}
	if devs[1].IRPrescan != 4 || devs[0].IRPostscan != 4 {
		t.Fatalf("unexpected geometry: %+v %+v", *devs[0], *devs[1])
	}
}

func TestChainScanRejectsBadIRLength(t *testing.T) {
	if _, err := NewChain(NewSimChain()).Scan([]int{0}); err == nil {
		t.Fatal("expected error for zero ir length")
	}
}

type stuckLow struct{ SimChain }

func (s *stuckLow) Next(tms, tdi bool) (bool, error) {
	s.SimChain.Next(tms, tdi)
	return false, nil
}

func TestChainScanTDOStuckLow(t *testing.T) {
	drv := &stuckLow{SimChain: *NewSimChain()}
	_, err := NewChain(drv).Scan(nil)
	if !errors.Is(err, ErrChainBroken) {
		t.Fatalf("Scan error = %v, want ErrChainBroken", err)
	}
}

func TestChainWriteIRAndShiftDR(t *testing.T) {
	var updated uint64
	target := &SimDevice{
		IDCode:   0x4BA00477,
		IRLen:    4,
		IDCodeIR: 0xE,
		Registers: map[uint32]*SimRegister{
			0xA: {
				Len:     35,
				Capture: func() uint64 { return 0x5_1234_5678 },
				Update:  func(v uint64) { updated = v },
			},
		},
	}
	other := &SimDevice{IRLen: 5}
	sim := NewSimChain(other, target)
	c := NewChain(sim)
	devs, err := c.Scan(nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	dev := devs[1]
	if err := c.WriteIR(dev, 0xA); err != nil {
		t.Fatalf("WriteIR returned error: %v", err)
	}
	if target.IR() != 0xA {
		t.Fatalf("target ir = %#x, want 0xA", target.IR())
	}
	if other.IR() != 0x1F {
		t.Fatalf("other ir = %#x, want bypass", other.IR())
	}

	tdi := []byte{0x0B, 0x00, 0x00, 0x00, 0x04}
	tdo, err := c.ShiftDR(dev, tdi, 35)
	if err != nil {
		t.Fatalf("ShiftDR returned error: %v", err)
	}
	if want := []byte{0x78, 0x56, 0x34, 0x12, 0x05}; !bytes.Equal(tdo, want) {
		t.Fatalf("tdo = % X, want % X", tdo, want)
	}
	if updated != 0x4_0000_000B {
		t.Fatalf("register updated with %#x", updated)
	}
}

func TestCheckShift(t *testing.T) {
	if _, err := CheckShift(nil, 0); err == nil {
		t.Fatal("expected error for zero ticks")
	}
	if _, err := CheckShift([]byte{0}, 9); err == nil {
		t.Fatal("expected error for short buffer")
	}
	if n, err := CheckShift([]byte{0, 0}, 9); err != nil || n != 2 {
		t.Fatalf("CheckShift = %d, %v", n, err)
	}
}
