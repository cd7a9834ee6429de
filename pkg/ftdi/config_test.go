package ftdi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cableYAML = `
cables:
  - name: bench
    description: Bench adapter
    vendor: 0x0403
    product: 0x6010
    interface: B
    data_low: "PIN6 | MPSSE_CS | MPSSE_DO | MPSSE_DI"
    ddr_low: "MPSSE_CS | MPSSE_DO | MPSSE_SK"
    assert_srst: {data_low: "~PIN6", ddr_low: "PIN6"}
    deassert_srst: {data_low: "PIN6", ddr_low: "~PIN6"}
    srst_get: {cmd: low, pin: "~PIN5"}
    target_voltage: {cmd: high, pin: PIN0}
  - name: ftdi
    vendor: 0x0403
    product: 0x6014
    data_low: "0x08"
    ddr_low: "0x0B"
`

func TestLoadCables(t *testing.T) {
	descs, err := LoadCables(strings.NewReader(cableYAML))
	if err != nil {
		t.Fatalf("LoadCables returned error: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("loaded %d cables, want 2", len(descs))
	}

	d := descs[0]
	if d.Name != "bench" || d.Description != "Bench adapter" || d.Channel != ChannelB {
		t.Fatalf("descriptor = %+v", d)
	}
	if d.VendorID != 0x0403 || d.ProductID != 0x6010 {
		t.Fatalf("usb id = %s", d.USBID())
	}
	if d.DataLow != 0x4E || d.DDRLow != 0x0B {
		t.Fatalf("idle pins = %#02x/%#02x", d.DataLow, d.DDRLow)
	}
	wantAssert := Transition{DataLow: Mask{Clear: Pin6}, DDRLow: Mask{Set: Pin6}}
	if d.AssertSRST != wantAssert {
		t.Fatalf("assert = %+v", d.AssertSRST)
	}
	if d.SRSTSense != (Sense{Cmd: GetBitsLow, Pin: Pin5, ActiveLow: true}) {
		t.Fatalf("srst sense = %+v", d.SRSTSense)
	}
	if d.VoltageSense != (Sense{Cmd: GetBitsHigh, Pin: Pin0}) {
		t.Fatalf("voltage sense = %+v", d.VoltageSense)
	}
	if descs[1].Channel != ChannelA {
		t.Fatalf("default interface = %s", descs[1].Channel)
	}
}

func TestLoadCablesErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field": "cables:\n  - name: x\n    colour: red\n",
		"missing name":  "cables:\n  - vendor: 1\n",
		"bad pin":       "cables:\n  - name: x\n    data_low: PIN9\n",
		"complement":    "cables:\n  - name: x\n    ddr_low: \"~PIN1\"\n",
		"bad interface": "cables:\n  - name: x\n    interface: E\n",
		"bad sense cmd": "cables:\n  - name: x\n    srst_get: {cmd: mid, pin: PIN1}\n",
		"mixed sense":   "cables:\n  - name: x\n    srst_get: {cmd: low, pin: \"PIN1 | ~PIN2\"}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadCables(strings.NewReader(doc)); err == nil {
				t.Fatal("LoadCables succeeded")
			}
		})
	}
}

func TestLoadCableFileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cables.yaml")
	if err := os.WriteFile(path, []byte(cableYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	table := Builtin()
	if err := table.LoadCableFile(path); err != nil {
		t.Fatalf("LoadCableFile returned error: %v", err)
	}
	d, err := table.Lookup("ftdi")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if d.ProductID != 0x6014 {
		t.Fatalf("ftdi product = %#04x, want the file's entry", d.ProductID)
	}
	if _, err := table.Lookup("bench"); err != nil {
		t.Fatalf("Lookup(bench) returned error: %v", err)
	}
	if len(table.Names()) != 14 {
		t.Fatalf("table has %d cables, want 14", len(table.Names()))
	}

	if err := table.LoadCableFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}
