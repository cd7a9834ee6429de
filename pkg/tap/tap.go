// Package tap tracks the IEEE 1149.1 TAP controller state of a chain and
// produces the TMS sequences that move it between states.
package tap

import "fmt"

// State is one of the sixteen TAP controller states.
type State uint8

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR

	numStates
)

var stateNames = [numStates]string{
	"Test-Logic-Reset", "Run-Test/Idle",
	"Select-DR-Scan", "Capture-DR", "Shift-DR", "Exit1-DR", "Pause-DR", "Exit2-DR", "Update-DR",
	"Select-IR-Scan", "Capture-IR", "Shift-IR", "Exit1-IR", "Pause-IR", "Exit2-IR", "Update-IR",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// next[s][tms] is the state after one TCK with the given TMS level.
var next = [numStates][2]State{
	TestLogicReset: {RunTestIdle, TestLogicReset},
	RunTestIdle:    {RunTestIdle, SelectDRScan},
	SelectDRScan:   {CaptureDR, SelectIRScan},
	CaptureDR:      {ShiftDR, Exit1DR},
	ShiftDR:        {ShiftDR, Exit1DR},
	Exit1DR:        {PauseDR, UpdateDR},
	PauseDR:        {PauseDR, Exit2DR},
	Exit2DR:        {ShiftDR, UpdateDR},
	UpdateDR:       {RunTestIdle, SelectDRScan},
	SelectIRScan:   {CaptureIR, TestLogicReset},
	CaptureIR:      {ShiftIR, Exit1IR},
	ShiftIR:        {ShiftIR, Exit1IR},
	Exit1IR:        {PauseIR, UpdateIR},
	PauseIR:        {PauseIR, Exit2IR},
	Exit2IR:        {ShiftIR, UpdateIR},
	UpdateIR:       {RunTestIdle, SelectDRScan},
}

// Next returns the state reached from s after one clock with tms.
func Next(s State, tms bool) State {
	if tms {
		return next[s][1]
	}
	return next[s][0]
}

// ResetTMS and ResetTicks drive any state to Test-Logic-Reset.
const (
	ResetTMS   uint32 = 0x1F
	ResetTicks        = 5
)

// Path returns the shortest TMS sequence from one state to another, packed
// LSB first.
func Path(from, to State) (tms uint32, ticks int, err error) {
	if from >= numStates || to >= numStates {
		return 0, 0, fmt.Errorf("tap: invalid state %d -> %d", from, to)
	}
	if from == to {
		return 0, 0, nil
	}

	type step struct {
		state State
		tms   uint32
		ticks int
	}
	var seen [numStates]bool
	seen[from] = true
	queue := []step{{state: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for bit := 0; bit < 2; bit++ {
			n := next[cur.state][bit]
			if seen[n] {
				continue
			}
			s := step{state: n, tms: cur.tms | uint32(bit)<<cur.ticks, ticks: cur.ticks + 1}
			if n == to {
				return s.tms, s.ticks, nil
			}
			seen[n] = true
			queue = append(queue, s)
		}
	}
	return 0, 0, fmt.Errorf("tap: no path from %s to %s", from, to)
}

// Machine mirrors the controller state of a chain. It performs no I/O.
type Machine struct {
	state State
}

// NewMachine returns a machine in Test-Logic-Reset.
func NewMachine() *Machine {
	return &Machine{state: TestLogicReset}
}

// State returns the tracked state.
func (m *Machine) State() State { return m.state }

// Clock advances one TCK.
func (m *Machine) Clock(tms bool) State {
	m.state = Next(m.state, tms)
	return m.state
}

// Reset forces the tracked state to Test-Logic-Reset and returns the
// sequence that does the same on hardware in any state.
func (m *Machine) Reset() (tms uint32, ticks int) {
	m.state = TestLogicReset
	return ResetTMS, ResetTicks
}

// Walk returns the sequence to reach target and records the new state.
func (m *Machine) Walk(target State) (tms uint32, ticks int, err error) {
	tms, ticks, err = Path(m.state, target)
	if err != nil {
		return 0, 0, err
	}
	m.state = target
	return tms, ticks, nil
}
