// Package stlink talks to ST-Link debug probes through their firmware
// command set: every request is a 16-byte command on the bulk OUT endpoint
// followed by an optional response on the bulk IN endpoint.
package stlink

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/boljen/go-bitmap"
	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

// ErrFirmwareTooOld is returned by Init when the probe firmware predates the
// DAP register commands.
var ErrFirmwareTooOld = errors.New("stlink: firmware too old, please update")

// Firmware below this JTAG version lacks the commands used here, unless it
// speaks API v3.
const (
	minJTAGVersion = 32
	apiV3          = 30
)

const maxAPSel = 255

// Version holds the fields decoded from GET_VERSION and GET_VERSION_EX.
type Version struct {
	Stlink uint8
	API    uint8
	JTAG   uint8
	SWIM   uint8
	Mass   uint8
	Bridge uint8
	VID    uint16
	PID    uint16
}

func (v Version) String() string {
	s := fmt.Sprintf("V%dJ%d", v.Stlink, v.JTAG)
	switch v.API {
	case 30:
		s += fmt.Sprintf("M%dB%dS%d", v.Mass, v.Bridge, v.SWIM)
	case 20:
		s += fmt.Sprintf("S%d", v.SWIM)
	case 21:
		s += fmt.Sprintf("M%d", v.Mass)
	}
	return s
}

// apiForProduct gives the host-side API generation of a probe model.
func apiForProduct(pid uint16) uint8 {
	switch pid {
	case ProductV2:
		return 20
	case ProductV21, ProductV21MSD:
		return 21
	case ProductV3:
		return apiV3
	}
	return 0
}

// Transport is one ST-Link session. It is not safe for concurrent use.
type Transport struct {
	tx, rx  Endpoint
	timeout time.Duration
	closer  io.Closer

	version Version
	openAPs bitmap.Bitmap
}

// New builds a Transport over the given endpoints without touching the
// probe. pid selects the API generation.
func New(tx, rx Endpoint, pid uint16) *Transport {
	return &Transport{
		tx:      tx,
		rx:      rx,
		timeout: TransferTimeout,
		version: Version{API: apiForProduct(pid), PID: pid},
		openAPs: bitmap.New(maxAPSel + 1),
	}
}

// Version returns the firmware version read by Init.
func (t *Transport) Version() Version { return t.version }

// Close releases the USB handles.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// Init reads the firmware version, refuses outdated firmware and leaves
// whatever mode a previous session left the probe in.
func (t *Transport) Init() error {
	if err := t.readVersion(); err != nil {
		return err
	}
	glog.V(1).Infof("stlink: firmware %s", t.version)
	if t.version.API < apiV3 && t.version.JTAG < minJTAGVersion {
		return fmt.Errorf("%w (%s)", ErrFirmwareTooOld, t.version)
	}
	return t.LeaveState()
}

// sendRecv writes cmd padded to a command packet, then reads len(rx) bytes.
// A failed stage clears the halt on its endpoint and is not retried.
func (t *Transport) sendRecv(cmd []byte, rx []byte) error {
	if len(cmd) > 0 {
		pkt := make([]byte, cmdSize)
		copy(pkt, cmd)
		if glog.V(3) {
			glog.Infof("stlink: > %s", hex.EncodeToString(cmd))
		}
		if _, err := submitWait(t.tx, pkt, t.timeout); err != nil {
			t.clearHalt(t.tx)
			return err
		}
	}
	if len(rx) == 0 {
		return nil
	}
	n, err := submitWait(t.rx, rx, t.timeout)
	if err != nil {
		t.clearHalt(t.rx)
		return err
	}
	if glog.V(3) {
		glog.Infof("stlink: < %s", hex.EncodeToString(rx[:n]))
	}
	if n < len(rx) {
		return fmt.Errorf("stlink: short response, %d of %d bytes: %w", n, len(rx), adiv5.ErrLinkFailure)
	}
	return nil
}

func (t *Transport) clearHalt(ep Endpoint) {
	if err := ep.ClearHalt(); err != nil {
		glog.Warningf("stlink: clear halt: %v", err)
	}
}

func (t *Transport) readVersion() error {
	d := make([]byte, 6)
	if err := t.sendRecv([]byte{cmdGetVersion}, d); err != nil {
		return fmt.Errorf("stlink: get version: %w", err)
	}
	v := &t.version
	v.VID = uint16(d[3])<<8 | uint16(d[2])
	v.PID = uint16(d[5])<<8 | uint16(d[4])
	raw := uint16(d[0])<<8 | uint16(d[1])
	v.Stlink = uint8(raw>>12) & 0x0F

	if v.Stlink == 3 {
		ex := make([]byte, 16)
		if err := t.sendRecv([]byte{cmdGetVersionEx}, ex); err != nil {
			return fmt.Errorf("stlink: get version ex: %w", err)
		}
		v.SWIM = ex[1]
		v.JTAG = ex[2]
		v.Mass = ex[3]
		v.Bridge = ex[4]
		return nil
	}

	v.JTAG = uint8(raw>>6) & 0x3F
	if v.PID == ProductV21 || v.PID == ProductV21MSD {
		v.Mass = uint8(raw) & 0x3F
	} else {
		v.SWIM = uint8(raw) & 0x3F
	}
	return nil
}

// CurrentMode queries the probe's operating mode.
func (t *Transport) CurrentMode() (Mode, error) {
	d := make([]byte, 2)
	if err := t.sendRecv([]byte{cmdGetCurrentMode}, d); err != nil {
		return 0, fmt.Errorf("stlink: get mode: %w", err)
	}
	return Mode(d[0]), nil
}

// LeaveState exits DFU, SWIM or debug mode. Mass storage and bootloader
// modes have no exit command and are only reported.
func (t *Transport) LeaveState() error {
	mode, err := t.CurrentMode()
	if err != nil {
		return err
	}
	var exit []byte
	switch mode {
	case ModeDFU:
		exit = []byte{cmdDFU, dfuExit}
	case ModeSWIM:
		exit = []byte{cmdSWIM, swimExit}
	case ModeDebug:
		exit = []byte{cmdDebug, debugExit}
	default:
		glog.V(1).Infof("stlink: probe in %s mode", mode)
		return nil
	}
	glog.V(1).Infof("stlink: leaving %s mode", mode)
	if err := t.sendRecv(exit, nil); err != nil {
		return fmt.Errorf("stlink: leave %s mode: %w", mode, err)
	}
	return nil
}

// TargetVoltage returns the target supply measured by the probe in volts.
func (t *Transport) TargetVoltage() (float64, error) {
	d := make([]byte, 8)
	if err := t.sendRecv([]byte{cmdGetTargetVoltage}, d); err != nil {
		return 0, fmt.Errorf("stlink: target voltage: %w", err)
	}
	ref := binary.LittleEndian.Uint16(d[0:2])
	meas := binary.LittleEndian.Uint16(d[4:6])
	if ref == 0 {
		return 0, nil
	}
	return 2 * float64(meas) * 1.2 / float64(ref), nil
}

// SetReset drives the target nRST line low when assert is set.
func (t *Transport) SetReset(assert bool) error {
	level := byte(nrstHigh)
	if assert {
		level = nrstLow
	}
	d := make([]byte, 2)
	if err := t.sendRecv([]byte{cmdDebug, debugDriveNRST, level}, d); err != nil {
		return fmt.Errorf("stlink: drive nrst: %w", err)
	}
	return checkStatus("drive nrst", d[0])
}

// ReadReset is not available: the firmware cannot sense nRST.
func (t *Transport) ReadReset() (bool, error) {
	return false, fmt.Errorf("stlink: reset readback: %w", adiv5.ErrUnsupported)
}

// EnterSWD switches the probe into SWD debug mode.
func (t *Transport) EnterSWD() error {
	return t.enter(enterSWD, "swd")
}

// EnterJTAG switches the probe into JTAG debug mode.
func (t *Transport) EnterJTAG() error {
	return t.enter(enterJTAG, "jtag")
}

func (t *Transport) enter(mode byte, name string) error {
	d := make([]byte, 2)
	if err := t.sendRecv([]byte{cmdDebug, debugEnter, mode}, d); err != nil {
		return fmt.Errorf("stlink: enter %s: %w", name, err)
	}
	t.openAPs = bitmap.New(maxAPSel + 1)
	return checkStatus("enter "+name, d[0])
}

// ExitDebug leaves debug mode.
func (t *Transport) ExitDebug() error {
	return t.sendRecv([]byte{cmdDebug, debugExit}, nil)
}

// ReadCoreID returns the IDCODE of the DP the probe is attached to.
func (t *Transport) ReadCoreID() (uint32, error) {
	d := make([]byte, 4)
	if err := t.sendRecv([]byte{cmdDebug, debugReadCoreID}, d); err != nil {
		return 0, fmt.Errorf("stlink: read core id: %w", err)
	}
	return binary.LittleEndian.Uint32(d), nil
}

// ReadIDCodes returns the IDCODEs reported in JTAG mode, nearest TDO first.
// Empty slots are dropped, so an empty chain yields none.
func (t *Transport) ReadIDCodes() ([]uint32, error) {
	d := make([]byte, 12)
	if err := t.sendRecv([]byte{cmdDebug, debugReadIDCodes}, d); err != nil {
		return nil, fmt.Errorf("stlink: read idcodes: %w", err)
	}
	if err := checkStatus("read idcodes", d[0]); err != nil {
		return nil, err
	}
	var ids []uint32
	for _, off := range []int{4, 8} {
		if id := binary.LittleEndian.Uint32(d[off : off+4]); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReadDAPRegister reads a register of the DP (port 0xFFFF) or of an AP.
func (t *Transport) ReadDAPRegister(port, addr uint16) (uint32, error) {
	cmd := []byte{cmdDebug, debugReadDAPReg, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(cmd[2:], port)
	binary.LittleEndian.PutUint16(cmd[4:], addr)
	d := make([]byte, 8)
	if err := t.sendRecv(cmd, d); err != nil {
		return 0, fmt.Errorf("stlink: read dap register: %w", err)
	}
	if err := checkStatus(fmt.Sprintf("read dap %#04x:%#02x", port, addr), d[0]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d[4:8]), nil
}

// WriteDAPRegister writes a register of the DP (port 0xFFFF) or of an AP.
func (t *Transport) WriteDAPRegister(port, addr uint16, value uint32) error {
	cmd := make([]byte, 10)
	cmd[0], cmd[1] = cmdDebug, debugWriteDAPReg
	binary.LittleEndian.PutUint16(cmd[2:], port)
	binary.LittleEndian.PutUint16(cmd[4:], addr)
	binary.LittleEndian.PutUint32(cmd[6:], value)
	d := make([]byte, 2)
	if err := t.sendRecv(cmd, d); err != nil {
		return fmt.Errorf("stlink: write dap register: %w", err)
	}
	return checkStatus(fmt.Sprintf("write dap %#04x:%#02x", port, addr), d[0])
}

// OpenAP initialises an access port once per debug session.
func (t *Transport) OpenAP(apsel uint8) error {
	if t.openAPs.Get(int(apsel)) {
		return nil
	}
	d := make([]byte, 2)
	if err := t.sendRecv([]byte{cmdDebug, debugInitAP, apsel}, d); err != nil {
		return fmt.Errorf("stlink: init ap %d: %w", apsel, err)
	}
	if err := checkStatus(fmt.Sprintf("init ap %d", apsel), d[0]); err != nil {
		return err
	}
	glog.V(1).Infof("stlink: access port %d enabled", apsel)
	t.openAPs.Set(int(apsel), true)
	return nil
}
