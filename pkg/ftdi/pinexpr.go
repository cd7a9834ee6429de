package ftdi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Pin expressions name the bits of a Mask in cable files, for example
// "PIN6 | MPSSE_CS", "~PIN6" or "PIN5 | ~PIN6". A complemented term clears
// its bits, every other term sets them.

var pinLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[~|()]`},
})

type pinExpr struct {
	Terms []*pinTerm `@@ ( "|" @@ )*`
}

type pinTerm struct {
	Not     bool        `@"~"?`
	Operand *pinOperand `@@`
}

type pinOperand struct {
	Name   string   `  @Ident`
	Number string   `| @( Hex | Int )`
	Group  *pinExpr `| "(" @@ ")"`
}

var pinParser = participle.MustBuild[pinExpr](
	participle.Lexer(pinLexer),
	participle.Elide("Whitespace"),
)

var pinNames = map[string]uint8{
	"PIN0":      Pin0,
	"PIN1":      Pin1,
	"PIN2":      Pin2,
	"PIN3":      Pin3,
	"PIN4":      Pin4,
	"PIN5":      Pin5,
	"PIN6":      Pin6,
	"PIN7":      Pin7,
	"MPSSE_SK":  PinSK,
	"MPSSE_DO":  PinDO,
	"MPSSE_DI":  PinDI,
	"MPSSE_CS":  PinCS,
	"MPSSE_TCK": PinSK,
	"MPSSE_TDI": PinDO,
	"MPSSE_TDO": PinDI,
	"MPSSE_TMS": PinCS,
}

// ParseMask parses a pin expression. An empty string is the empty mask.
func ParseMask(s string) (Mask, error) {
	if strings.TrimSpace(s) == "" {
		return Mask{}, nil
	}
	expr, err := pinParser.ParseString("", s)
	if err != nil {
		return Mask{}, fmt.Errorf("ftdi: pin expression %q: %w", s, err)
	}
	m, err := expr.eval()
	if err != nil {
		return Mask{}, fmt.Errorf("ftdi: pin expression %q: %w", s, err)
	}
	return m, nil
}

// ParsePins parses an expression naming plain pin bits, as used for the
// idle pin bytes. Complemented terms are rejected.
func ParsePins(s string) (uint8, error) {
	m, err := ParseMask(s)
	if err != nil {
		return 0, err
	}
	if m.Clear != 0 {
		return 0, fmt.Errorf("ftdi: pin expression %q: complement not allowed here", s)
	}
	return m.Set, nil
}

func (e *pinExpr) eval() (Mask, error) {
	var m Mask
	for _, t := range e.Terms {
		tm, err := t.eval()
		if err != nil {
			return Mask{}, err
		}
		m.Set |= tm.Set
		m.Clear |= tm.Clear
	}
	if both := m.Set & m.Clear; both != 0 {
		return Mask{}, fmt.Errorf("bits %#02x both set and cleared", both)
	}
	return m, nil
}

func (t *pinTerm) eval() (Mask, error) {
	m, err := t.Operand.eval()
	if err != nil {
		return Mask{}, err
	}
	if t.Not {
		m.Set, m.Clear = m.Clear, m.Set
	}
	return m, nil
}

func (o *pinOperand) eval() (Mask, error) {
	switch {
	case o.Group != nil:
		return o.Group.eval()
	case o.Name != "":
		v, ok := pinNames[strings.ToUpper(o.Name)]
		if !ok {
			return Mask{}, fmt.Errorf("unknown pin %q", o.Name)
		}
		return Mask{Set: v}, nil
	}
	v, err := strconv.ParseUint(o.Number, 0, 8)
	if err != nil {
		return Mask{}, fmt.Errorf("pin value %q: %w", o.Number, err)
	}
	return Mask{Set: uint8(v)}, nil
}
