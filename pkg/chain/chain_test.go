package chain

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// fakeLink reports a fixed list of IDCODEs the way probe firmware does.
type fakeLink struct {
	ids      []uint32
	enterErr error
	portErr  error
	enters   int
	ports    []int
}

type nopPort struct{}

func (nopPort) LowAccess(adiv5.Direction, uint16, uint32) (uint32, error) { return 0, nil }

func (f *fakeLink) EnterDebug() error {
	f.enters++
	return f.enterErr
}

func (f *fakeLink) Discover() ([]*jtag.Device, error) {
	devs := make([]*jtag.Device, len(f.ids))
	for i, id := range f.ids {
		devs[i] = &jtag.Device{Index: i, IDCode: id}
	}
	return devs, nil
}

func (f *fakeLink) DebugPort(dev *jtag.Device) (adiv5.Port, error) {
	f.ports = append(f.ports, dev.Index)
	if f.portErr != nil {
		return nil, f.portErr
	}
	return nopPort{}, nil
}

// plainLink cannot bind debug ports.
type plainLink struct{ link *fakeLink }

func (p plainLink) EnterDebug() error                 { return p.link.EnterDebug() }
func (p plainLink) Discover() ([]*jtag.Device, error) { return p.link.Discover() }

func TestScanEmptyChain(t *testing.T) {
	link := &fakeLink{}
	s := NewScanner(link, nil)

	n, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if n != 0 || len(s.Devices()) != 0 || len(s.DebugPorts()) != 0 {
		t.Fatalf("empty chain: n=%d devices=%v ports=%v", n, s.Devices(), s.DebugPorts())
	}
	if link.enters != 1 {
		t.Fatalf("EnterDebug called %d times", link.enters)
	}
}

func TestScanClassifiesDevices(t *testing.T) {
	link := &fakeLink{ids: []uint32{0x4BA00477, 0x06413041, 0x12345678, 0x5BA02477}}
	s := NewScanner(link, nil)

	n, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if n != 4 {
		t.Fatalf("Scan = %d, want 4", n)
	}

	tests := []struct {
		desc    string
		claimed bool
	}{
		{"ARM Limited: ADIv5 JTAG-DP port.", true},
		{"ST Microelectronics: STM32F4xx.", false},
		{UnknownDevice, false},
		{"ARM Limited: ADIv5 JTAG-DP port.", true},
	}
	devs := s.Devices()
	for i, tt := range tests {
		d := devs[i]
		if d.IDCode != link.ids[i] || d.Index != i {
			t.Errorf("device %d = %s", i, d)
		}
		if d.Description != tt.desc {
			t.Errorf("device %d description = %q, want %q", i, d.Description, tt.desc)
		}
		if d.Claimed() != tt.claimed {
			t.Errorf("device %d claimed = %v, want %v", i, d.Claimed(), tt.claimed)
		}
		if d.Claimed() {
			if d.DP.IDCode != d.IDCode || d.DP.Device() != d.Device {
				t.Errorf("device %d dp = %#x bound to %v", i, d.DP.IDCode, d.DP.Device())
			}
		}
	}
	if len(s.DebugPorts()) != 2 {
		t.Fatalf("DebugPorts = %d, want 2", len(s.DebugPorts()))
	}
}

func TestScanFirstMatchWins(t *testing.T) {
	mine := Entry{Value: 0x4BA00477, Mask: 0xFFFFFFFF, Description: "bench DP"}
	table := NewTable(append([]Entry{mine}, KnownDevices()...)...)

	link := &fakeLink{ids: []uint32{0x4BA00477, 0x3BA00477}}
	s := NewScanner(link, table)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	devs := s.Devices()
	if devs[0].Description != "bench DP" || devs[0].Claimed() {
		t.Fatalf("device 0 = %q claimed=%v, want the earlier entry", devs[0].Description, devs[0].Claimed())
	}
	if !devs[1].Claimed() {
		t.Fatal("device 1 should fall through to the ADIv5 entry")
	}

	// 0x4BA00477 also matches "Unknown ARM"; the ADIv5 entry comes first.
	e, ok := DefaultTable().Lookup(0x4BA00477)
	if !ok || e.Handler == nil {
		t.Fatalf("Lookup = %v, %v", e, ok)
	}
}

func TestRescanReplacesDevices(t *testing.T) {
	link := &fakeLink{ids: []uint32{0x4BA00477, 0x06413041}}
	s := NewScanner(link, nil)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	first := s.Devices()

	link.ids = []uint32{0x4BA00477}
	n, err := s.Scan()
	if err != nil || n != 1 {
		t.Fatalf("rescan = %d, %v", n, err)
	}
	second := s.Devices()
	if second[0] == first[0] || second[0].DP == first[0].DP {
		t.Fatal("rescan reused a device from the previous scan")
	}
	if len(link.ports) != 2 {
		t.Fatalf("DebugPort called %d times, want 2", len(link.ports))
	}
}

func TestScanEnterDebugFailure(t *testing.T) {
	link := &fakeLink{ids: []uint32{0x4BA00477}}
	s := NewScanner(link, nil)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	link.enterErr = adiv5.ErrLinkFailure
	n, err := s.Scan()
	if !errors.Is(err, adiv5.ErrLinkFailure) || n != 0 {
		t.Fatalf("Scan = %d, %v, want link failure", n, err)
	}
	if len(s.Devices()) != 0 {
		t.Fatal("failed scan kept the previous devices")
	}
}

func TestScanHandlerErrors(t *testing.T) {
	t.Run("unsupported leaves device unclaimed", func(t *testing.T) {
		link := &fakeLink{ids: []uint32{0x4BA00477}, portErr: adiv5.ErrUnsupported}
		s := NewScanner(link, nil)
		n, err := s.Scan()
		if err != nil || n != 1 {
			t.Fatalf("Scan = %d, %v", n, err)
		}
		if s.Devices()[0].Claimed() {
			t.Fatal("device claimed despite unsupported port")
		}
	})

	t.Run("link without ports", func(t *testing.T) {
		link := plainLink{&fakeLink{ids: []uint32{0x4BA00477}}}
		s := NewScanner(link, nil)
		if n, err := s.Scan(); err != nil || n != 1 {
			t.Fatalf("Scan = %d, %v", n, err)
		}
		if s.Devices()[0].Claimed() {
			t.Fatal("device claimed through a link without ports")
		}
	})

	t.Run("link failure aborts scan", func(t *testing.T) {
		link := &fakeLink{ids: []uint32{0x4BA00477}, portErr: adiv5.ErrLinkFailure}
		s := NewScanner(link, nil)
		if _, err := s.Scan(); !errors.Is(err, adiv5.ErrLinkFailure) {
			t.Fatalf("Scan = %v, want link failure", err)
		}
		if len(s.Devices()) != 0 {
			t.Fatal("failed scan recorded devices")
		}
	})
}

func TestJTAGLinkScan(t *testing.T) {
	sim := jtag.NewSimChain(
		&jtag.SimDevice{IDCode: 0x4BA00477, IRLen: 4, IDCodeIR: 0xE},
		&jtag.SimDevice{IRLen: 5},
		&jtag.SimDevice{IDCode: 0x06413041, IRLen: 5, IDCodeIR: 0x1},
	)
	link := NewJTAGLink(jtag.NewChain(sim), nil)
	s := NewScanner(link, nil)

	n, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("Scan = %d, want 3", n)
	}
	devs := s.Devices()
	if !devs[0].Claimed() || devs[1].Claimed() || devs[2].Claimed() {
		t.Fatalf("claims = %v %v %v", devs[0].Claimed(), devs[1].Claimed(), devs[2].Claimed())
	}
	if _, ok := devs[0].DP.Transport().(*adiv5.JTAGPort); !ok {
		t.Fatalf("transport = %T, want *adiv5.JTAGPort", devs[0].DP.Transport())
	}
	if !devs[1].Bypassed() || devs[1].Description != UnknownDevice {
		t.Fatalf("device 1 = %s", devs[1])
	}
	if devs[2].IRLen != 5 || devs[2].IRPrescan != 9 {
		t.Fatalf("device 2 geometry = %+v", devs[2].Device)
	}
}

func TestJTAGLinkEmptyChain(t *testing.T) {
	s := NewScanner(NewJTAGLink(jtag.NewChain(jtag.NewSimChain()), nil), nil)
	n, err := s.Scan()
	if err != nil || n != 0 {
		t.Fatalf("Scan = %d, %v", n, err)
	}
	if len(s.DebugPorts()) != 0 {
		t.Fatal("empty chain allocated a debug port")
	}
}
