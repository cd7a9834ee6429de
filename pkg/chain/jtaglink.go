package chain

import (
	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/jtag"
)

// JTAGLink scans a chain the host drives bit by bit, such as a bit-banged
// cable. Debug ports are JTAG-DPs reached with DPACC/APACC scans.
type JTAGLink struct {
	chain  *jtag.Chain
	irlens []int
}

var _ PortLink = (*JTAGLink)(nil)

// NewJTAGLink wraps chain. irlens fixes the IR length of every device,
// nearest TDO first; nil detects them.
func NewJTAGLink(chain *jtag.Chain, irlens []int) *JTAGLink {
	return &JTAGLink{chain: chain, irlens: irlens}
}

// Chain returns the wrapped chain.
func (l *JTAGLink) Chain() *jtag.Chain { return l.chain }

// EnterDebug resets every TAP.
func (l *JTAGLink) EnterDebug() error { return l.chain.Reset() }

// Discover sizes the chain and reads the IDCODEs. Devices in BYPASS after
// reset are reported with an IDCODE of 0.
func (l *JTAGLink) Discover() ([]*jtag.Device, error) {
	return l.chain.Scan(l.irlens)
}

// DebugPort returns a JTAG-DP transport for dev.
func (l *JTAGLink) DebugPort(dev *jtag.Device) (adiv5.Port, error) {
	return adiv5.NewJTAGPort(l.chain, dev), nil
}
