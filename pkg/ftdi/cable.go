// Package ftdi drives FTDI MPSSE adapters as JTAG cables. The wiring of each
// adapter (idle pin levels, reset transitions, read-back pins) comes from a
// Descriptor, so no adapter needs code of its own.
package ftdi

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

const bufferSize = 4096

// DefaultSpeed is the TCK frequency used when none is given.
const DefaultSpeed = 1 * physic.MegaHertz

// PinState is the tracked level and direction of both pin groups.
type PinState struct {
	DataLow  uint8
	DDRLow   uint8
	DataHigh uint8
	DDRHigh  uint8
}

// Cable is one open adapter. Commands are queued in a 4096 byte buffer and
// reach the chip on Flush, when the buffer would overflow, or before a read.
// A Cable is not safe for concurrent use.
type Cable struct {
	desc   Descriptor
	port   io.ReadWriter
	closer io.Closer

	pins  PinState
	buf   []byte
	clock int64
	speed physic.Frequency
}

// New wraps an MPSSE byte channel. The tracked pins start at the
// descriptor's idle levels.
func New(desc Descriptor, port io.ReadWriter) *Cable {
	return &Cable{
		desc: desc,
		port: port,
		pins: PinState{
			DataLow:  desc.DataLow,
			DDRLow:   desc.DDRLow,
			DataHigh: desc.DataHigh,
			DDRHigh:  desc.DDRHigh,
		},
		buf:   make([]byte, 0, bufferSize),
		clock: baseClock,
	}
}

// Descriptor returns the cable's wiring.
func (c *Cable) Descriptor() Descriptor { return c.desc }

// Pins returns the tracked pin state.
func (c *Cable) Pins() PinState { return c.pins }

// Speed returns the TCK frequency last programmed.
func (c *Cable) Speed() physic.Frequency { return c.speed }

// Close flushes pending commands and releases the channel.
func (c *Cable) Close() error {
	err := c.Flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Init puts the engine into a known state: loopback and clock tweaks off, the
// TCK divisor set, both pin groups at their idle levels and the descriptor's
// init transition applied.
func (c *Cable) Init(speed physic.Frequency) error {
	setup := []byte{LoopbackOff}
	if c.clock == baseClock {
		setup = append(setup, DisableDiv5, DisableAdaptCK, Disable3Phase)
	}
	if _, err := c.Write(setup); err != nil {
		return err
	}
	if err := c.SetSpeed(speed); err != nil {
		return err
	}
	if _, err := c.Write([]byte{
		SetBitsLow, c.pins.DataLow, c.pins.DDRLow,
		SetBitsHigh, c.pins.DataHigh, c.pins.DDRHigh,
	}); err != nil {
		return err
	}
	if err := c.SetPins(c.desc.Init); err != nil {
		return err
	}
	return c.Flush()
}

// SetSpeed queues the TCK divisor for the fastest clock not above speed.
func (c *Cable) SetSpeed(speed physic.Frequency) error {
	hz := int64(speed / physic.Hertz)
	if hz <= 0 {
		return fmt.Errorf("ftdi: invalid speed %s", speed)
	}
	div := (c.clock+2*hz-1)/(2*hz) - 1
	if div < 0 {
		div = 0
	}
	if div > 0xFFFF {
		div = 0xFFFF
	}
	if _, err := c.Write([]byte{TCKDivisor, byte(div), byte(div >> 8)}); err != nil {
		return err
	}
	c.speed = physic.Frequency(c.clock/(2*(div+1))) * physic.Hertz
	glog.V(1).Infof("ftdi: %s: tck %s (divisor %d)", c.desc.Name, c.speed, div)
	return nil
}

// Write queues raw MPSSE bytes.
func (c *Cable) Write(p []byte) (int, error) {
	if len(c.buf)+len(p) >= bufferSize {
		if err := c.Flush(); err != nil {
			return 0, err
		}
	}
	if len(p) >= bufferSize {
		return c.send(p)
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

// Flush transmits the queued commands.
func (c *Cable) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	_, err := c.send(c.buf)
	c.buf = c.buf[:0]
	return err
}

func (c *Cable) send(p []byte) (int, error) {
	if glog.V(3) {
		glog.Infof("ftdi: out %s", hex.EncodeToString(p))
	}
	n, err := c.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("ftdi: write: %v: %w", err, adiv5.ErrLinkFailure)
	}
	return n, nil
}

// ReadBack flushes every queued command followed by SEND_IMMEDIATE, then
// reads exactly len(p) bytes of replies.
func (c *Cable) ReadBack(p []byte) error {
	if _, err := c.Write([]byte{SendImmediate}); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	if _, err := io.ReadFull(c.port, p); err != nil {
		return fmt.Errorf("ftdi: read %d bytes: %v: %w", len(p), err, adiv5.ErrLinkFailure)
	}
	if glog.V(3) {
		glog.Infof("ftdi: in  %s", hex.EncodeToString(p))
	}
	return nil
}

// SetPins merges t into the tracked pin state and queues SET_BITS commands
// for the groups it touches. Nothing is flushed.
func (c *Cable) SetPins(t Transition) error {
	cmd := make([]byte, 0, 6)
	if t.low() {
		c.pins.DataLow = t.DataLow.Apply(c.pins.DataLow)
		c.pins.DDRLow = t.DDRLow.Apply(c.pins.DDRLow)
		cmd = append(cmd, SetBitsLow, c.pins.DataLow, c.pins.DDRLow)
	}
	if t.high() {
		c.pins.DataHigh = t.DataHigh.Apply(c.pins.DataHigh)
		c.pins.DDRHigh = t.DDRHigh.Apply(c.pins.DDRHigh)
		cmd = append(cmd, SetBitsHigh, c.pins.DataHigh, c.pins.DDRHigh)
	}
	if len(cmd) == 0 {
		return nil
	}
	glog.V(2).Infof("ftdi: pins low %#02x/%#02x high %#02x/%#02x",
		c.pins.DataLow, c.pins.DDRLow, c.pins.DataHigh, c.pins.DDRHigh)
	_, err := c.Write(cmd)
	return err
}

// AssertReset drives SRST active.
func (c *Cable) AssertReset() error { return c.reset(c.desc.AssertSRST, "assert") }

// DeassertReset releases SRST.
func (c *Cable) DeassertReset() error { return c.reset(c.desc.DeassertSRST, "deassert") }

// SetReset asserts or releases SRST.
func (c *Cable) SetReset(assert bool) error {
	if assert {
		return c.AssertReset()
	}
	return c.DeassertReset()
}

func (c *Cable) reset(t Transition, what string) error {
	if t.Empty() {
		return fmt.Errorf("ftdi: %s: %s srst: %w", c.desc.Name, what, adiv5.ErrUnsupported)
	}
	glog.V(1).Infof("ftdi: %s: %s srst", c.desc.Name, what)
	if err := c.SetPins(t); err != nil {
		return err
	}
	return c.Flush()
}

// ReadReset reports whether SRST is at its asserted level. Without a sense
// pin or a driven reset pin the state is unknown and ErrUnsupported is
// returned.
func (c *Cable) ReadReset() (bool, error) {
	s, ok := c.desc.ResetSense()
	if !ok {
		return false, fmt.Errorf("ftdi: %s: srst read-back: %w", c.desc.Name, adiv5.ErrUnsupported)
	}
	return c.sense(s)
}

// TargetPresent reports the voltage-sense pin.
func (c *Cable) TargetPresent() (bool, error) {
	if !c.desc.VoltageSense.Defined() {
		return false, fmt.Errorf("ftdi: %s: target voltage: %w", c.desc.Name, adiv5.ErrUnsupported)
	}
	return c.sense(c.desc.VoltageSense)
}

func (c *Cable) sense(s Sense) (bool, error) {
	if _, err := c.Write([]byte{s.Cmd}); err != nil {
		return false, err
	}
	var b [1]byte
	if err := c.ReadBack(b[:]); err != nil {
		return false, err
	}
	return s.Active(b[0]), nil
}
