// Package descriptor implements the per-connection state record: the
// socket, raw input buffer, Telnet option state, output chain,
// identity and timing fields every other core component reads and
// mutates, plus the descriptor list shared across the event loop.
package descriptor

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stlalpha/muxcore/internal/output"
)

// Encoding is the descriptor's current character encoding.
type Encoding int

const (
	ASCII Encoding = iota
	Latin1
	UTF8
)

func (e Encoding) String() string {
	switch e {
	case ASCII:
		return "ASCII"
	case Latin1:
		return "LATIN1"
	case UTF8:
		return "UTF8"
	default:
		return "UNKNOWN"
	}
}

// InputState is the raw-input Telnet IAC parser state.
type InputState int

const (
	StateNormal InputState = iota
	StateIAC
	StateIACWill
	StateIACDont
	StateIACDo
	StateIACWont
	StateIACSB
	StateIACSBIAC
)

// QState is a per-option Q-method negotiation state (RFC 1143).
type QState int

const (
	QNo QState = iota
	QYes
	QWantNoEmpty
	QWantNoOpposite
	QWantYesEmpty
	QWantYesOpposite
)

// DisconnectReason is the closed enum of disconnect causes.
type DisconnectReason int

const (
	Unknown DisconnectReason = iota
	Quit
	IdleTimeout
	Booted
	Sockdied
	GoingDown
	BadLogin
	NoLogins
	Logout
	GameFull
	Restart
)

func (r DisconnectReason) String() string {
	switch r {
	case Quit:
		return "QUIT"
	case IdleTimeout:
		return "IDLE_TIMEOUT"
	case Booted:
		return "BOOTED"
	case Sockdied:
		return "SOCKDIED"
	case GoingDown:
		return "GOING_DOWN"
	case BadLogin:
		return "BAD_LOGIN"
	case NoLogins:
		return "NO_LOGINS"
	case Logout:
		return "LOGOUT"
	case GameFull:
		return "GAME_FULL"
	case Restart:
		return "RESTART"
	default:
		return "UNKNOWN"
	}
}

// Limits bounds the growable buffers a descriptor owns.
type Limits struct {
	LineMax int
	SBufMax int
}

// DefaultLimits mirrors the legacy design's LBUF-derived constants.
var DefaultLimits = Limits{LineMax: 8000 - 100, SBufMax: 4096}

// Descriptor is the per-connection state record.
type Descriptor struct {
	ID       string // uuid, for log correlation only
	Conn     net.Conn
	PeerAddr net.Addr

	AutoDark    bool
	Player      int // external object identifier; 0 until login
	ConnectedAt time.Time

	RawInput      []byte
	RawInputState InputState
	limits        Limits

	OptionPayload []byte

	HimState [256]QState
	UsState  [256]QState

	Encoding           Encoding
	NegotiatedEncoding Encoding
	CodepointState     int
	CodepointPartial   []byte

	TermType string
	Width    int
	Height   int

	Out *output.Chain

	CommandCount int
	RetriesLeft  int
	Timeout      time.Duration

	TLSSession interface{} // opaque handle; nil until STARTTLS succeeds

	InputLost int64

	// pendingClose tells the event loop to tear the descriptor down
	// with a given reason at the next opportunity (e.g. a failed
	// STARTTLS handshake, an idle-timeout sweep). It is set from
	// RequestClose and consumed from TakePendingClose; both are safe
	// to call from a goroutine other than the one reading this
	// descriptor's socket (the idle sweep is one such caller), unlike
	// the rest of this struct's fields, which spec §5 reserves for the
	// single goroutine serving this descriptor.
	pendingClose atomic.Int32 // 0 = none, else DisconnectReason+1

	// shared guards the fields below, each written by a goroutine other
	// than the one serving this descriptor's socket: the resolver pump
	// (Addr, Username), and the maintenance scheduler's quota-refill and
	// idle-sweep jobs (Quota, Connected, LastInputAt). Every other field
	// above is owned exclusively by the serving goroutine per spec §5
	// and needs no lock.
	shared struct {
		mu          sync.Mutex
		connected   bool
		lastInputAt time.Time
		quota       int
		username    string // helper-reported ident userid, <=10 chars
		addr        string // hostname once resolved, IP literal otherwise
	}
}

// RequestClose marks the descriptor for forced close with reason, for
// the event loop to act on at the next opportunity.
func (d *Descriptor) RequestClose(reason DisconnectReason) {
	d.pendingClose.Store(int32(reason) + 1)
}

// TakePendingClose atomically reads and clears a pending close
// request, if any.
func (d *Descriptor) TakePendingClose() (DisconnectReason, bool) {
	v := d.pendingClose.Swap(0)
	if v == 0 {
		return Unknown, false
	}
	return DisconnectReason(v - 1), true
}

// Connected reports whether the descriptor is considered part of a
// live session (as opposed to a socket pending teardown).
func (d *Descriptor) Connected() bool {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	return d.shared.connected
}

// SetConnected updates the session-connected flag.
func (d *Descriptor) SetConnected(v bool) {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	d.shared.connected = v
}

// LastInputAt returns the timestamp of the most recently read input.
func (d *Descriptor) LastInputAt() time.Time {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	return d.shared.lastInputAt
}

// SetLastInputAt records the timestamp of the most recently read input.
func (d *Descriptor) SetLastInputAt(t time.Time) {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	d.shared.lastInputAt = t
}

// Quota returns the descriptor's remaining command quota.
func (d *Descriptor) Quota() int {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	return d.shared.quota
}

// RefillQuota adds delta to the quota, capping it at max.
func (d *Descriptor) RefillQuota(delta, max int) {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	d.shared.quota += delta
	if d.shared.quota > max {
		d.shared.quota = max
	}
}

// Username returns the helper-reported ident userid, if any.
func (d *Descriptor) Username() string {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	return d.shared.username
}

// SetUsername records the helper-reported ident userid (<=10 chars).
func (d *Descriptor) SetUsername(u string) {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	d.shared.username = u
}

// Addr returns the descriptor's resolved hostname, or the IP literal
// if reverse-DNS resolution has not completed (or failed).
func (d *Descriptor) Addr() string {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	return d.shared.addr
}

// SetAddr records the descriptor's address, overwriting the IP literal
// once the resolver reports a hostname.
func (d *Descriptor) SetAddr(a string) {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	d.shared.addr = a
}

// CompareAndSetAddr replaces addr with newAddr only if it currently
// equals oldAddr, reporting whether the swap happened. It lets the
// resolver match a descriptor by its original IP literal without a
// lost-update race against a peer login or a second resolver reply
// changing addr between the caller's read and write.
func (d *Descriptor) CompareAndSetAddr(oldAddr, newAddr string) bool {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()
	if d.shared.addr != oldAddr {
		return false
	}
	d.shared.addr = newAddr
	return true
}

// New initializes a descriptor after accept: option state tables
// zeroed to NO, encoding defaults to Latin1, timestamps set to now,
// empty output chain.
func New(conn net.Conn, outputCap int) *Descriptor {
	now := time.Now().UTC()
	d := &Descriptor{
		ID:                 uuid.NewString(),
		Conn:               conn,
		ConnectedAt:        now,
		limits:             DefaultLimits,
		Encoding:           Latin1,
		NegotiatedEncoding: Latin1,
		Width:              78,
		Height:             24,
		Out:                output.NewChain(outputCap),
	}
	d.shared.connected = true
	d.shared.lastInputAt = now
	if conn != nil {
		d.PeerAddr = conn.RemoteAddr()
		d.shared.addr = addrHost(conn.RemoteAddr())
	}
	return d
}

func addrHost(a net.Addr) string {
	if a == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	return host
}

// IsOpen reports whether the socket is live; a nil conn must never be
// read from or written to.
func (d *Descriptor) IsOpen() bool { return d.Conn != nil }

// AppendLine hands off a complete input line, resetting RawInput. The
// caller (the NVT parser) has already validated the bytes are
// printable/complete per the active encoding.
func (d *Descriptor) AppendLine() []byte {
	line := d.RawInput
	d.RawInput = nil
	d.CommandCount++
	return line
}

// LineMax and SBufMax expose the descriptor's configured bounds.
func (d *Descriptor) LineMax() int { return d.limits.LineMax }
func (d *Descriptor) SBufMax() int { return d.limits.SBufMax }

// SetLimits overrides the default bounds (used by tests and by
// listener construction to apply ListenConfig values).
func (d *Descriptor) SetLimits(l Limits) { d.limits = l }

// ResetEncoding restores encoding to the last peer-negotiated value
// and discards any in-flight codepoint.
func (d *Descriptor) ResetEncoding() {
	d.Encoding = d.NegotiatedEncoding
	d.CodepointState = 0
	d.CodepointPartial = nil
}

// ResetForLogout clears per-session state while retaining the socket.
func (d *Descriptor) ResetForLogout() {
	d.Player = 0
	d.RawInput = nil
	d.RawInputState = StateNormal
	d.OptionPayload = nil
	d.CommandCount = 0
	d.ResetEncoding()
}
