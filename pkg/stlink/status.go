package stlink

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

// Status is the first byte of a debug command response.
type Status uint8

const (
	StatusOK                Status = 0x80
	StatusFault             Status = 0x81
	StatusJTAGGetIDCodeErr  Status = 0x09
	StatusJTAGWriteErr      Status = 0x0C
	StatusJTAGWriteVerifErr Status = 0x0D
	StatusAPWait            Status = 0x10
	StatusAPFault           Status = 0x11
	StatusAPError           Status = 0x12
	StatusAPParityErr       Status = 0x13
	StatusDPWait            Status = 0x14
	StatusDPFault           Status = 0x15
	StatusDPError           Status = 0x16
	StatusDPParityErr       Status = 0x17
	StatusAPWDataErr        Status = 0x18
	StatusAPStickyErr       Status = 0x19
	StatusAPStickyOrunErr   Status = 0x1A
	StatusBadAPErr          Status = 0x1D
)

var statusNames = map[Status]string{
	StatusOK:                "ok",
	StatusFault:             "fault",
	StatusJTAGGetIDCodeErr:  "jtag get idcode error",
	StatusJTAGWriteErr:      "jtag write error",
	StatusJTAGWriteVerifErr: "jtag write verify error",
	StatusAPWait:            "ap wait",
	StatusAPFault:           "ap fault",
	StatusAPError:           "ap error",
	StatusAPParityErr:       "ap parity error",
	StatusDPWait:            "dp wait",
	StatusDPFault:           "dp fault",
	StatusDPError:           "dp error",
	StatusDPParityErr:       "dp parity error",
	StatusAPWDataErr:        "ap wdata error",
	StatusAPStickyErr:       "ap sticky error",
	StatusAPStickyOrunErr:   "ap sticky overrun error",
	StatusBadAPErr:          "bad ap",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown status 0x%02x", uint8(s))
}

// Outcome is the three-way classification of a Status.
type Outcome int

const (
	OutcomeFail Outcome = iota
	OutcomeOK
	OutcomeWait
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeWait:
		return "WAIT"
	}
	return "FAIL"
}

// Classify maps a status byte to its outcome. Write verify errors count as
// success because some firmware reports them on good writes. Anything not
// known to be good or busy fails.
func Classify(s Status) Outcome {
	switch s {
	case StatusOK:
		return OutcomeOK
	case StatusJTAGWriteVerifErr:
		glog.V(2).Info("stlink: write verify error, ignoring")
		return OutcomeOK
	case StatusAPWait, StatusDPWait:
		return OutcomeWait
	}
	return OutcomeFail
}

// StatusError carries a status byte that did not classify as OK. It unwraps
// to adiv5.ErrTransient or adiv5.ErrFault.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stlink: %s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	if Classify(e.Status) == OutcomeWait {
		return adiv5.ErrTransient
	}
	return adiv5.ErrFault
}

// checkStatus returns nil for OK outcomes and a *StatusError otherwise.
func checkStatus(op string, b byte) error {
	s := Status(b)
	if Classify(s) == OutcomeOK {
		return nil
	}
	glog.V(2).Infof("stlink: %s: status %s", op, s)
	return &StatusError{Op: op, Status: s}
}
