package stlink

// USB identity of ST-Link probes.
const (
	VendorID     = 0x0483
	ProductMask  = 0xFFF0
	ProductGroup = 0x3740

	ProductV1     = 0x3744
	ProductV2     = 0x3748
	ProductV21    = 0x374B
	ProductV21MSD = 0x3752
	ProductV3     = 0x374F
)

// Bulk endpoint addresses. V2 takes commands on 0x02, later probes on 0x01.
const (
	endpointIn    = 0x81
	endpointOutV2 = 0x02
	endpointOut   = 0x01
)

const cmdSize = 16

// Top level command groups.
const (
	cmdGetVersion       = 0xF1
	cmdDebug            = 0xF2
	cmdDFU              = 0xF3
	cmdSWIM             = 0xF4
	cmdGetCurrentMode   = 0xF5
	cmdGetTargetVoltage = 0xF7
	cmdGetVersionEx     = 0xFB
)

// Sub-commands.
const (
	dfuExit  = 0x07
	swimExit = 0x01

	debugExit        = 0x21
	debugReadCoreID  = 0x22
	debugEnter       = 0x30
	debugReadIDCodes = 0x31
	debugDriveNRST   = 0x3C
	debugReadDAPReg  = 0x45
	debugWriteDAPReg = 0x46
	debugInitAP      = 0x4B

	enterSWD  = 0xA3
	enterJTAG = 0xA4

	nrstLow  = 0x00
	nrstHigh = 0x01
)

// debugPortAccess selects the DP instead of an AP in DAP register commands.
const debugPortAccess = 0xFFFF

// Mode is the operating mode reported by GET_CURRENT_MODE.
type Mode uint8

const (
	ModeDFU        Mode = 0x00
	ModeMass       Mode = 0x01
	ModeDebug      Mode = 0x02
	ModeSWIM       Mode = 0x03
	ModeBootloader Mode = 0x04
)

func (m Mode) String() string {
	switch m {
	case ModeDFU:
		return "DFU"
	case ModeMass:
		return "mass storage"
	case ModeDebug:
		return "debug"
	case ModeSWIM:
		return "SWIM"
	case ModeBootloader:
		return "bootloader"
	}
	return "unknown"
}
