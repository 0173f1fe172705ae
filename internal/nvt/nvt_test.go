package nvt

import (
	"testing"

	"github.com/stlalpha/muxcore/internal/descriptor"
	"github.com/stlalpha/muxcore/internal/output"
)

func newTestDescriptor() *descriptor.Descriptor {
	d := descriptor.New(nil, 0)
	d.Encoding = descriptor.ASCII
	d.NegotiatedEncoding = descriptor.ASCII
	d.Out = output.NewChain(0)
	return d
}

func drainOutput(d *descriptor.Descriptor) []byte {
	var buf []byte
	w := writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	})
	d.Out.Drain(w)
	return buf
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestS1LineFramingASCII(t *testing.T) {
	d := newTestDescriptor()
	var lines []string
	p := New(d, func(line []byte) { lines = append(lines, string(line)) })

	p.Feed([]byte("hello\r\nworld\n"))

	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Fatalf("got %v", lines)
	}
}

func TestS2NAWSSuboption(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{cmdIAC, cmdSB, OptNAWS, 0x00, 0x50, 0x00, 0x18, cmdIAC, cmdSE})

	if d.Width != 80 || d.Height != 24 {
		t.Fatalf("got width=%d height=%d", d.Width, d.Height)
	}
}

func TestS3CharsetAcceptedUTF8(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{cmdIAC, cmdSB, OptCharset, subAccepted, 'U', 'T', 'F', '-', '8', cmdIAC, cmdSE})

	if d.Encoding != descriptor.UTF8 || d.NegotiatedEncoding != descriptor.UTF8 {
		t.Fatalf("expected UTF8 encoding, got %v/%v", d.Encoding, d.NegotiatedEncoding)
	}
	out := drainOutput(d)
	wantWill := []byte{cmdIAC, cmdWILL, OptBinary}
	wantDo := []byte{cmdIAC, cmdDO, OptBinary}
	if !containsSeq(out, wantWill) {
		t.Fatalf("expected IAC WILL BINARY in output, got %v", out)
	}
	if !containsSeq(out, wantDo) {
		t.Fatalf("expected IAC DO BINARY in output, got %v", out)
	}
}

func TestS4AYT(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{cmdIAC, cmdAYT})

	out := drainOutput(d)
	if string(out) != "\r\n[Yes]\r\n" {
		t.Fatalf("got %q", out)
	}
}

func TestS5IACEscapeInSubnegotiation(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{cmdIAC, cmdSB, OptTType, subIS, 'X', cmdIAC, cmdIAC, 'Y', cmdIAC, cmdSE})

	if d.TermType != "X\xFFY" {
		t.Fatalf("got %q", d.TermType)
	}
}

func TestS6OverlongUTF8Rejected(t *testing.T) {
	d := newTestDescriptor()
	d.Encoding = descriptor.UTF8
	d.NegotiatedEncoding = descriptor.UTF8
	var lines []string
	p := New(d, func(line []byte) { lines = append(lines, string(line)) })

	p.Feed([]byte{0xC0, 0xAF})

	if len(d.RawInput) != 0 {
		t.Fatalf("expected nothing committed, got %q", d.RawInput)
	}
	if d.InputLost != 2 {
		t.Fatalf("expected input_lost == 2, got %d", d.InputLost)
	}
	if d.CodepointPartial != nil {
		t.Fatal("expected codepoint DFA reset")
	}
}

func TestEraseIsNoOpOnEmptyLine(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{0x08})

	if len(d.RawInput) != 0 {
		t.Fatalf("expected empty raw input, got %q", d.RawInput)
	}
	out := drainOutput(d)
	if string(out) != "\b \b" {
		t.Fatalf("got %q", out)
	}
}

func TestEraseRemovesLastCodepoint(t *testing.T) {
	d := newTestDescriptor()
	d.Encoding = descriptor.UTF8
	d.NegotiatedEncoding = descriptor.UTF8
	p := New(d, nil)

	p.Feed([]byte("ab"))
	p.Feed([]byte{0x08})

	if string(d.RawInput) != "a" {
		t.Fatalf("got %q", d.RawInput)
	}
}

func TestQMethodConvergesFromPeerDO(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	p.Feed([]byte{cmdIAC, cmdDO, OptEOR})

	if d.UsState[OptEOR] != descriptor.QYes {
		t.Fatalf("expected us_state[EOR] == YES, got %v", d.UsState[OptEOR])
	}
	out := drainOutput(d)
	if !containsSeq(out, []byte{cmdIAC, cmdWILL, OptEOR}) {
		t.Fatalf("expected WILL EOR reply, got %v", out)
	}
}

func TestTTYPEWillTriggersSend(t *testing.T) {
	d := newTestDescriptor()
	p := New(d, nil)

	// TTYPE is not an option we accept unasked; the server's own
	// DO TTYPE from StartNegotiation is what the peer's WILL answers.
	p.StartNegotiation()
	p.Feed([]byte{cmdIAC, cmdWILL, OptTType})

	if d.HimState[OptTType] != descriptor.QYes {
		t.Fatalf("expected him_state[TTYPE] == YES")
	}
	out := drainOutput(d)
	want := []byte{cmdIAC, cmdSB, OptTType, subSEND, cmdIAC, cmdSE}
	if !containsSeq(out, want) {
		t.Fatalf("expected SB TTYPE SEND, got %v", out)
	}
}

func containsSeq(haystack, needle []byte) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
