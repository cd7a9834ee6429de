package probe

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/ftdi"
	"github.com/OpenTraceLab/probelink/pkg/stlink"
)

// InterfaceKind categorizes adapter families.
type InterfaceKind string

const (
	InterfaceKindSTLink InterfaceKind = "stlink"
	InterfaceKindFTDI   InterfaceKind = "ftdi"
)

// InterfaceInfo describes a detected adapter.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string

	// Adapters lists the --adapter names that drive the device.
	Adapters []string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
}

// DiscoverInterfaces enumerates attached ST-Link probes and the FTDI chips
// whose IDs appear in cables. A failing enumeration is logged and skipped
// so the other family is still listed.
func DiscoverInterfaces(ctx context.Context, cables *ftdi.Table) ([]InterfaceInfo, error) {
	var results []InterfaceInfo

	probes, err := stlink.ListProbes()
	if err != nil {
		glog.Warningf("probe: %v", err)
	}
	for _, p := range probes {
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindSTLink,
			Description: p.Product,
			VendorID:    p.VendorID,
			ProductID:   p.ProductID,
			Serial:      p.Serial,
			Adapters:    []string{STLink},
		})
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}

	devs, err := ftdi.ListDevices(cables)
	if err != nil {
		glog.Warningf("probe: %v", err)
	}
	for _, d := range devs {
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindFTDI,
			Description: d.Product,
			VendorID:    d.VendorID,
			ProductID:   d.ProductID,
			Serial:      d.Serial,
			Adapters:    d.Cables,
		})
	}
	return results, nil
}
