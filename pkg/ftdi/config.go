package ftdi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// cableFile is the YAML layout of a cable file:
//
//	cables:
//	  - name: mycable
//	    vendor: 0x0403
//	    product: 0x6010
//	    interface: A
//	    data_low: "PIN6 | MPSSE_CS | MPSSE_DO | MPSSE_DI"
//	    ddr_low: "MPSSE_CS | MPSSE_DO | MPSSE_SK"
//	    assert_srst: {data_low: "~PIN6", ddr_low: "PIN6"}
//	    deassert_srst: {data_low: "PIN6", ddr_low: "~PIN6"}
//	    srst_get: {cmd: low, pin: "~PIN6"}
type cableFile struct {
	Cables []cableConfig `yaml:"cables"`
}

type cableConfig struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Vendor       uint16            `yaml:"vendor"`
	Product      uint16            `yaml:"product"`
	Interface    string            `yaml:"interface"`
	DataLow      string            `yaml:"data_low"`
	DDRLow       string            `yaml:"ddr_low"`
	DataHigh     string            `yaml:"data_high"`
	DDRHigh      string            `yaml:"ddr_high"`
	Init         *transitionConfig `yaml:"init"`
	AssertSRST   *transitionConfig `yaml:"assert_srst"`
	DeassertSRST *transitionConfig `yaml:"deassert_srst"`
	SRSTGet      *senseConfig      `yaml:"srst_get"`
	Voltage      *senseConfig      `yaml:"target_voltage"`
	TMSIn        *senseConfig      `yaml:"tms_in"`
	SWDRead      *transitionConfig `yaml:"swd_read"`
	SWDWrite     *transitionConfig `yaml:"swd_write"`
	SWDReadData  string            `yaml:"swd_read_data"`
}

type transitionConfig struct {
	DataLow  string `yaml:"data_low"`
	DDRLow   string `yaml:"ddr_low"`
	DataHigh string `yaml:"data_high"`
	DDRHigh  string `yaml:"ddr_high"`
}

// senseConfig names a read-back pin. A complemented pin is active low.
type senseConfig struct {
	Cmd string `yaml:"cmd"`
	Pin string `yaml:"pin"`
}

// LoadCables decodes the descriptors of a cable file.
func LoadCables(r io.Reader) ([]Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f cableFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ftdi: cable file: %w", err)
	}

	descs := make([]Descriptor, 0, len(f.Cables))
	for i, c := range f.Cables {
		d, err := c.descriptor()
		if err != nil {
			return nil, fmt.Errorf("ftdi: cable %d (%s): %w", i, c.Name, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// LoadCableFile adds the cables of the named file to t.
func (t *Table) LoadCableFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ftdi: %w", err)
	}
	defer f.Close()

	descs, err := LoadCables(f)
	if err != nil {
		return err
	}
	for _, d := range descs {
		t.Add(d)
	}
	return nil
}

func (c *cableConfig) descriptor() (Descriptor, error) {
	if c.Name == "" {
		return Descriptor{}, errors.New("missing name")
	}
	d := Descriptor{
		Name:        c.Name,
		Description: c.Description,
		VendorID:    c.Vendor,
		ProductID:   c.Product,
	}

	var err error
	if d.Channel, err = parseChannel(c.Interface); err != nil {
		return Descriptor{}, err
	}
	pins := []struct {
		expr string
		dst  *uint8
	}{
		{c.DataLow, &d.DataLow},
		{c.DDRLow, &d.DDRLow},
		{c.DataHigh, &d.DataHigh},
		{c.DDRHigh, &d.DDRHigh},
		{c.SWDReadData, &d.SWDReadData},
	}
	for _, p := range pins {
		if *p.dst, err = ParsePins(p.expr); err != nil {
			return Descriptor{}, err
		}
	}

	transitions := []struct {
		cfg *transitionConfig
		dst *Transition
	}{
		{c.Init, &d.Init},
		{c.AssertSRST, &d.AssertSRST},
		{c.DeassertSRST, &d.DeassertSRST},
		{c.SWDRead, &d.SWDRead},
		{c.SWDWrite, &d.SWDWrite},
	}
	for _, t := range transitions {
		if *t.dst, err = t.cfg.transition(); err != nil {
			return Descriptor{}, err
		}
	}

	senses := []struct {
		cfg *senseConfig
		dst *Sense
	}{
		{c.SRSTGet, &d.SRSTSense},
		{c.Voltage, &d.VoltageSense},
		{c.TMSIn, &d.TMSSense},
	}
	for _, s := range senses {
		if *s.dst, err = s.cfg.sense(); err != nil {
			return Descriptor{}, err
		}
	}
	return d, nil
}

func (t *transitionConfig) transition() (Transition, error) {
	var tr Transition
	if t == nil {
		return tr, nil
	}
	fields := []struct {
		expr string
		dst  *Mask
	}{
		{t.DataLow, &tr.DataLow},
		{t.DDRLow, &tr.DDRLow},
		{t.DataHigh, &tr.DataHigh},
		{t.DDRHigh, &tr.DDRHigh},
	}
	for _, f := range fields {
		m, err := ParseMask(f.expr)
		if err != nil {
			return Transition{}, err
		}
		*f.dst = m
	}
	return tr, nil
}

func (s *senseConfig) sense() (Sense, error) {
	if s == nil {
		return Sense{}, nil
	}
	var cmd byte
	switch strings.ToLower(s.Cmd) {
	case "low", "get_bits_low":
		cmd = GetBitsLow
	case "high", "get_bits_high":
		cmd = GetBitsHigh
	default:
		return Sense{}, fmt.Errorf("unknown read command %q", s.Cmd)
	}
	m, err := ParseMask(s.Pin)
	if err != nil {
		return Sense{}, err
	}
	switch {
	case m.Set != 0 && m.Clear != 0:
		return Sense{}, fmt.Errorf("sense pin %q mixes polarities", s.Pin)
	case m.Clear != 0:
		return Sense{Cmd: cmd, Pin: m.Clear, ActiveLow: true}, nil
	case m.Set != 0:
		return Sense{Cmd: cmd, Pin: m.Set}, nil
	}
	return Sense{}, errors.New("sense without pin")
}

func parseChannel(s string) (Channel, error) {
	switch strings.ToUpper(s) {
	case "", "A":
		return ChannelA, nil
	case "B":
		return ChannelB, nil
	case "C":
		return ChannelC, nil
	case "D":
		return ChannelD, nil
	}
	return 0, fmt.Errorf("unknown interface %q", s)
}
