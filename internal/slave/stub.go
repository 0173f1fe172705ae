package slave

import (
	"bytes"
	"io"
	"net"
	"sync"
)

// Stub is the generic module-framework RPC pipe: a bidirectional
// framed byte pipe where framing and codec are entirely the module
// framework's concern. The core only guarantees non-blocking pumping,
// in-order delivery, and that a dead helper is reaped.
type Stub struct {
	helper *Helper

	mu     sync.Mutex
	egress bytes.Buffer

	// ReceiveBytes is called with each chunk read from the helper, in
	// order, before the next readiness poll.
	ReceiveBytes func(chunk []byte)
}

// NewStub wraps an already-launched Helper as a stub-RPC pipe.
func NewStub(h *Helper) *Stub { return &Stub{helper: h} }

// Conn exposes the underlying helper connection so the event loop can
// set read deadlines before PumpRead, since the stub pipe is dgram-
// backed and a bare blocking Read would stall the pump goroutine
// indefinitely when the module framework has nothing queued.
func (s *Stub) Conn() *net.UnixConn { return s.helper.Conn() }

// Alive reports whether the underlying helper is still live.
func (s *Stub) Alive() bool { return s.helper.Alive() }

// Enqueue appends bytes to the shared egress queue for the next Pump
// call to drain toward the helper.
func (s *Stub) Enqueue(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.egress.Write(data)
}

// PendingEgress reports whether there is anything queued to write,
// for the event loop's write-readiness set.
func (s *Stub) PendingEgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.egress.Len() > 0
}

// PumpRead performs one non-blocking read and delivers it to
// ReceiveBytes. A read of 0 bytes or a fatal (non-transient) error
// reaps the helper.
func (s *Stub) PumpRead() {
	conn := s.helper.Conn()
	if conn == nil {
		return
	}
	buf := make([]byte, 8192)
	n, err := conn.Read(buf)
	if n > 0 && s.ReceiveBytes != nil {
		s.ReceiveBytes(buf[:n])
	}
	if err != nil {
		if isTransient(err) {
			return
		}
		s.helper.Reap()
		return
	}
	if n == 0 {
		s.helper.Reap()
	}
}

// PumpWrite drains the egress queue toward the helper without
// blocking; a short write leaves the remainder queued for the next
// call.
func (s *Stub) PumpWrite() {
	conn := s.helper.Conn()
	if conn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.egress.Len() == 0 {
		return
	}
	n, err := conn.Write(s.egress.Bytes())
	if n > 0 {
		s.egress.Next(n)
	}
	if err != nil && !isTransient(err) {
		go s.helper.Reap()
	}
}

func isTransient(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok && t.Timeout() {
		return true
	}
	return err == io.ErrNoProgress
}
