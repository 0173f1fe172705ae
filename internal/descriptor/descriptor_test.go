package descriptor

import (
	"net"
	"testing"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

type fakeConn struct {
	net.Conn
	remote net.Addr
}

func (c *fakeConn) RemoteAddr() net.Addr { return c.remote }

func TestNewPopulatesDefaults(t *testing.T) {
	conn := &fakeConn{remote: fakeAddr("192.0.2.1:4201")}
	d := New(conn, 1<<16)

	if !d.Connected() {
		t.Fatal("expected new descriptor to be connected")
	}
	if d.Encoding != Latin1 || d.NegotiatedEncoding != Latin1 {
		t.Fatalf("expected default encoding LATIN1, got %v/%v", d.Encoding, d.NegotiatedEncoding)
	}
	if d.Addr() != "192.0.2.1" {
		t.Fatalf("expected resolved host, got %q", d.Addr())
	}
	for i := range d.HimState {
		if d.HimState[i] != QNo || d.UsState[i] != QNo {
			t.Fatalf("expected option state NO at index %d", i)
		}
	}
	if d.ID == "" {
		t.Fatal("expected a non-empty correlation id")
	}
}

func TestAppendLineResetsRawInputAndCountsCommand(t *testing.T) {
	d := New(nil, 0)
	d.RawInput = []byte("look")
	line := d.AppendLine()
	if string(line) != "look" {
		t.Fatalf("got %q", line)
	}
	if d.RawInput != nil {
		t.Fatal("expected raw input cleared")
	}
	if d.CommandCount != 1 {
		t.Fatalf("expected command count 1, got %d", d.CommandCount)
	}
}

func TestResetForLogoutClearsSessionButKeepsSocket(t *testing.T) {
	conn := &fakeConn{remote: fakeAddr("198.51.100.5:23")}
	d := New(conn, 0)
	d.Player = 42
	d.RawInput = []byte("partial")
	d.Encoding = UTF8
	d.CommandCount = 5

	d.ResetForLogout()

	if d.Player != 0 {
		t.Fatalf("expected player reset, got %d", d.Player)
	}
	if d.RawInput != nil {
		t.Fatal("expected raw input cleared")
	}
	if d.CommandCount != 0 {
		t.Fatalf("expected command count reset, got %d", d.CommandCount)
	}
	if d.Encoding != d.NegotiatedEncoding {
		t.Fatalf("expected encoding reset to negotiated value")
	}
	if d.Conn != conn {
		t.Fatal("expected socket retained across logout reset")
	}
}

func TestResetEncodingDiscardsPartialCodepoint(t *testing.T) {
	d := New(nil, 0)
	d.NegotiatedEncoding = UTF8
	d.Encoding = UTF8
	d.CodepointState = 2
	d.CodepointPartial = []byte{0xE2, 0x98}

	d.ResetEncoding()

	if d.CodepointState != 0 || d.CodepointPartial != nil {
		t.Fatal("expected in-flight codepoint discarded")
	}
	if d.Encoding != UTF8 {
		t.Fatalf("expected encoding to remain negotiated value, got %v", d.Encoding)
	}
}

func TestDisconnectReasonStrings(t *testing.T) {
	cases := map[DisconnectReason]string{
		Quit:        "QUIT",
		IdleTimeout: "IDLE_TIMEOUT",
		Booted:      "BOOTED",
		GameFull:    "GAME_FULL",
		Restart:     "RESTART",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Fatalf("reason %d: got %q want %q", reason, got, want)
		}
	}
}

func TestRequestCloseTakePendingClose(t *testing.T) {
	d := New(nil, 0)
	if _, ok := d.TakePendingClose(); ok {
		t.Fatal("expected no pending close on a fresh descriptor")
	}

	d.RequestClose(Restart)
	reason, ok := d.TakePendingClose()
	if !ok || reason != Restart {
		t.Fatalf("got (%v, %v), want (RESTART, true)", reason, ok)
	}

	if _, ok := d.TakePendingClose(); ok {
		t.Fatal("expected TakePendingClose to clear the request")
	}
}

func TestListAddRemoveGetByPlayer(t *testing.T) {
	l := NewList()
	d1 := New(nil, 0)
	d1.Player = 7
	d2 := New(nil, 0)

	l.Add(d1)
	l.Add(d2)

	if l.Len() != 2 {
		t.Fatalf("expected 2 descriptors, got %d", l.Len())
	}
	if _, ok := l.Get(d1.ID); !ok {
		t.Fatal("expected to find d1 by id")
	}
	if found, ok := l.ByPlayer(7); !ok || found != d1 {
		t.Fatal("expected to find d1 by player")
	}

	l.Remove(d1.ID)
	if l.Len() != 1 {
		t.Fatalf("expected 1 descriptor after remove, got %d", l.Len())
	}
	if _, ok := l.Get(d1.ID); ok {
		t.Fatal("expected d1 gone after remove")
	}
}
