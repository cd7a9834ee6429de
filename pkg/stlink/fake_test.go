package stlink

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransfer completes immediately unless hang is set, in which case it
// only settles when cancelled.
type fakeTransfer struct {
	done    chan struct{}
	n       int
	err     error
	mu      sync.Mutex
	cancels int
}

func newFakeTransfer(n int, err error, hang bool) *fakeTransfer {
	x := &fakeTransfer{done: make(chan struct{}), n: n, err: err}
	if !hang {
		close(x.done)
	}
	return x
}

func (x *fakeTransfer) Done() <-chan struct{} { return x.done }
func (x *fakeTransfer) Result() (int, error) { return x.n, x.err }

func (x *fakeTransfer) Cancel() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.cancels++
	if x.cancels == 1 {
		x.n, x.err = 0, errors.New("cancelled")
		close(x.done)
	}
}

// fakeOut records command packets.
type fakeOut struct {
	packets [][]byte
	hang    bool
	fail    error
	last    *fakeTransfer
	halts   int
}

func (e *fakeOut) Submit(buf []byte) (Transfer, error) {
	e.packets = append(e.packets, append([]byte(nil), buf...))
	e.last = newFakeTransfer(len(buf), e.fail, e.hang)
	return e.last, nil
}

func (e *fakeOut) ClearHalt() error { e.halts++; return nil }

// fakeIn answers reads from a queue of responses.
type fakeIn struct {
	replies [][]byte
	hang    bool
	last    *fakeTransfer
	halts   int
}

func (e *fakeIn) Submit(buf []byte) (Transfer, error) {
	var reply []byte
	if len(e.replies) > 0 {
		reply, e.replies = e.replies[0], e.replies[1:]
	}
	n := copy(buf, reply)
	if reply == nil {
		n = len(buf)
	}
	e.last = newFakeTransfer(n, nil, e.hang)
	return e.last, nil
}

func (e *fakeIn) ClearHalt() error { e.halts++; return nil }

func (e *fakeIn) queue(replies ...[]byte) { e.replies = append(e.replies, replies...) }

func newFake(pid uint16) (*Transport, *fakeOut, *fakeIn) {
	out, in := &fakeOut{}, &fakeIn{}
	return New(out, in, pid), out, in
}

// command returns the meaningful prefix of packet i.
func (e *fakeOut) command(t *testing.T, i int, n int) []byte {
	t.Helper()
	if i >= len(e.packets) {
		t.Fatalf("only %d packets sent, want packet %d", len(e.packets), i)
	}
	p := e.packets[i]
	if len(p) != cmdSize {
		t.Fatalf("packet %d is %d bytes, want %d", i, len(p), cmdSize)
	}
	if rest := p[n:]; !bytes.Equal(rest, make([]byte, len(rest))) {
		t.Fatalf("packet %d padding not zero: % X", i, p)
	}
	return p[:n]
}

func withTimeout(tr *Transport, d time.Duration) *Transport {
	tr.timeout = d
	return tr
}
