package stlink

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

func TestClassifyKnownStatuses(t *testing.T) {
	tests := []struct {
		status Status
		want   Outcome
	}{
		{0x80, OutcomeOK},
		{0x0D, OutcomeOK},
		{0x10, OutcomeWait},
		{0x14, OutcomeWait},
		{0x81, OutcomeFail},
		{0x09, OutcomeFail},
		{0x0C, OutcomeFail},
		{0x11, OutcomeFail},
		{0x12, OutcomeFail},
		{0x13, OutcomeFail},
		{0x15, OutcomeFail},
		{0x16, OutcomeFail},
		{0x17, OutcomeFail},
		{0x18, OutcomeFail},
		{0x19, OutcomeFail},
		{0x1A, OutcomeFail},
		{0x1D, OutcomeFail},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := Classify(tt.status); got != tt.want {
				t.Fatalf("Classify(%#02x) = %s, want %s", uint8(tt.status), got, tt.want)
			}
		})
	}
}

func TestClassifyUnknownStatusesFail(t *testing.T) {
	known := map[Status]bool{}
	for s := range statusNames {
		known[s] = true
	}
	for b := 0; b < 256; b++ {
		s := Status(b)
		if known[s] {
			continue
		}
		if got := Classify(s); got != OutcomeFail {
			t.Fatalf("Classify(%#02x) = %s, want FAIL", b, got)
		}
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	wait := checkStatus("op", 0x14)
	if !errors.Is(wait, adiv5.ErrTransient) || errors.Is(wait, adiv5.ErrFault) {
		t.Fatalf("wait status error = %v", wait)
	}
	fail := checkStatus("op", 0x42)
	if !errors.Is(fail, adiv5.ErrFault) {
		t.Fatalf("unknown status error = %v", fail)
	}
	var se *StatusError
	if !errors.As(fail, &se) || se.Status != 0x42 {
		t.Fatalf("errors.As = %v", fail)
	}
	if err := checkStatus("op", 0x0D); err != nil {
		t.Fatalf("write verify status returned %v", err)
	}
}
