package output

import (
	"errors"
	"testing"
)

type capWriter struct {
	accept int // max bytes accepted per Write call; 0 means unlimited
	out    []byte
	err    error
}

func (w *capWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n := len(p)
	if w.accept > 0 && n > w.accept {
		n = w.accept
	}
	w.out = append(w.out, p[:n]...)
	return n, nil
}

func TestQueueAndDrainWritesEverything(t *testing.T) {
	c := NewChain(0)
	c.Queue([]byte("hello "))
	c.Queue([]byte("world"))

	w := &capWriter{}
	if err := c.Drain(w); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(w.out) != "hello world" {
		t.Fatalf("got %q", w.out)
	}
	if !c.Empty() {
		t.Fatal("expected chain empty after full drain")
	}
}

func TestDrainResumesAfterShortWrite(t *testing.T) {
	c := NewChain(0)
	c.Queue([]byte("0123456789"))

	w := &capWriter{accept: 4}
	if err := c.Drain(w); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(w.out) != "0123" {
		t.Fatalf("first drain got %q", w.out)
	}
	if c.Empty() {
		t.Fatal("expected remainder still queued")
	}

	w.accept = 0
	if err := c.Drain(w); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if string(w.out) != "0123456789" {
		t.Fatalf("got %q", w.out)
	}
}

func TestQueueDropsAndCountsLostBeyondCap(t *testing.T) {
	c := NewChain(8)
	c.Queue([]byte("12345678"))
	c.Queue([]byte("overflow"))

	if c.Size() != 8 {
		t.Fatalf("expected size capped at 8, got %d", c.Size())
	}
	if c.Lost() != 8 {
		t.Fatalf("expected 8 bytes lost, got %d", c.Lost())
	}
}

func TestQueuePartiallyAcceptsUpToCap(t *testing.T) {
	c := NewChain(10)
	c.Queue([]byte("123456"))
	c.Queue([]byte("abcdef")) // only 4 bytes fit

	if c.Size() != 10 {
		t.Fatalf("expected size 10, got %d", c.Size())
	}
	if c.Lost() != 2 {
		t.Fatalf("expected 2 bytes lost, got %d", c.Lost())
	}
}

func TestDrainSurfacesWriteError(t *testing.T) {
	c := NewChain(0)
	c.Queue([]byte("data"))

	wantErr := errors.New("broken pipe")
	w := &capWriter{err: wantErr}
	if err := c.Drain(w); !errors.Is(err, wantErr) {
		t.Fatalf("expected write error surfaced, got %v", err)
	}
}

func TestOutputAccountingInvariant(t *testing.T) {
	c := NewChain(8)
	c.Queue([]byte("12345678"))
	c.Queue([]byte("overflow"))

	if got := c.Tot(); got != 16 {
		t.Fatalf("expected tot 16, got %d", got)
	}
	if int64(c.Size())+c.Lost() > c.Tot() {
		t.Fatalf("invariant violated: size=%d lost=%d tot=%d", c.Size(), c.Lost(), c.Tot())
	}

	before := c.Tot()
	w := &capWriter{}
	if err := c.Drain(w); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if c.Tot() < before {
		t.Fatalf("tot must be monotone non-decreasing: before=%d after=%d", before, c.Tot())
	}
	if int64(c.Size())+c.Lost() > c.Tot() {
		t.Fatalf("invariant violated after drain: size=%d lost=%d tot=%d", c.Size(), c.Lost(), c.Tot())
	}
}

func TestResetDiscardsQueuedOutput(t *testing.T) {
	c := NewChain(0)
	c.Queue([]byte("data"))
	c.Reset()
	if !c.Empty() {
		t.Fatal("expected chain empty after reset")
	}
	if c.Size() != 0 {
		t.Fatalf("expected size 0, got %d", c.Size())
	}
}
