// Package listener implements the socket listener and connection
// lifecycle: diff-and-converge port management, accept with
// access-list and TLS handshake, and the shutdown/disconnect path
// shared by every close reason.
package listener

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	muxconfig "github.com/stlalpha/muxcore/internal/config"
	"github.com/stlalpha/muxcore/internal/descriptor"
	"github.com/stlalpha/muxcore/internal/slave"
)

// AccessResult is the access-list collaborator's verdict for a peer.
type AccessResult int

const (
	Allowed AccessResult = iota
	Forbidden
)

// AccessList decides whether an inbound peer may connect at all.
type AccessList interface {
	Check(ip net.IP) AccessResult
}

// AllowAll is the default AccessList: every peer is allowed.
type AllowAll struct{}

func (AllowAll) Check(net.IP) AccessResult { return Allowed }

// SiteMonitor receives notifications on connect, refuse and
// disconnect.
type SiteMonitor interface {
	Notify(event, detail string)
}

// NopSiteMonitor discards every notification.
type NopSiteMonitor struct{}

func (NopSiteMonitor) Notify(string, string) {}

// FileCache supplies the two file-cache entries a new connection dumps
// verbatim to the raw socket.
type FileCache interface {
	Welcome() []byte
	ConnectionRefused() []byte
}

// StaticFileCache is a FileCache backed by fixed byte slices.
type StaticFileCache struct {
	WelcomeText  []byte
	RefusedText  []byte
}

func (c StaticFileCache) Welcome() []byte           { return c.WelcomeText }
func (c StaticFileCache) ConnectionRefused() []byte { return c.RefusedText }

// Accounting records the per-player disconnect accounting fields and
// the disconnect log line.
type Accounting interface {
	RecordDisconnect(d *descriptor.Descriptor, reason descriptor.DisconnectReason)
}

// NopAccounting discards disconnect accounting.
type NopAccounting struct{}

func (NopAccounting) RecordDisconnect(*descriptor.Descriptor, descriptor.DisconnectReason) {}

// boundPort is one currently-listening socket.
type boundPort struct {
	port int
	tls  bool
	ln   net.Listener
}

// Server owns the set of bound ports and the collaborators
// new_connection/shutdown consult.
type Server struct {
	Access     AccessList
	Monitor    SiteMonitor
	Files      FileCache
	Accounting Accounting
	TLSConfig  *tls.Config
	Resolver   *slave.Helper

	Limits descriptor.Limits
	OutputCapBytes int

	List *descriptor.List

	// OnAccept is called with every newly initialized descriptor,
	// before telnet option negotiation starts.
	OnAccept func(d *descriptor.Descriptor)

	ports []boundPort
}

// NewServer constructs a Server with sane defaults for any collaborator
// not supplied.
func NewServer(list *descriptor.List) *Server {
	return &Server{
		Access:         AllowAll{},
		Monitor:        NopSiteMonitor{},
		Files:          StaticFileCache{},
		Accounting:     NopAccounting{},
		Limits:         descriptor.DefaultLimits,
		OutputCapBytes: 1 << 20,
		List:           list,
	}
}

// NewServerFromConfig builds a Server whose limits and TLS material
// come from a loaded ListenConfig, and launches the resolver helper
// when cfg.UseResolver is set.
func NewServerFromConfig(cfg muxconfig.ListenConfig, list *descriptor.List) (*Server, error) {
	s := NewServer(list)
	s.Limits = descriptor.Limits{LineMax: cfg.LineMax, SBufMax: cfg.SBufMax}
	s.OutputCapBytes = cfg.OutputCapBytes

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("listener: loading TLS keypair: %w", err)
		}
		s.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	if cfg.UseResolver && cfg.ResolverHelperPath != "" {
		h := slave.New("resolver", cfg.ResolverHelperPath)
		if err := h.Launch(); err != nil {
			log.Printf("ERROR: launching resolver helper: %v", err)
		} else {
			s.Resolver = h
		}
	}

	if err := s.SetupPorts(cfg.PlainPorts, cfg.TLSPorts); err != nil {
		return nil, err
	}
	return s, nil
}

// listenControl sets SO_REUSEADDR before bind, matching the legacy
// design's "bind with SO_REUSEADDR, listen with a generous backlog".
func listenControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func listen(port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl}
	return lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
}

// SetupPorts diffs the currently-bound ports against the requested
// sets and converges: close anything no longer requested, open
// anything missing. If at least one port was requested but none could
// be opened, it returns an error the caller must treat as fatal and
// exit the process.
func (s *Server) SetupPorts(plain, tlsPorts []int) error {
	wantPlain := toSet(plain)
	wantTLS := toSet(tlsPorts)

	kept := s.ports[:0]
	for _, bp := range s.ports {
		want := wantPlain
		if bp.tls {
			want = wantTLS
		}
		if want[bp.port] {
			kept = append(kept, bp)
		} else {
			bp.ln.Close()
		}
	}
	s.ports = kept

	requested := len(plain) + len(tlsPorts)

	for p := range wantPlain {
		if s.hasPort(p, false) {
			continue
		}
		ln, err := listen(p)
		if err != nil {
			log.Printf("ERROR: listen plain port %d: %v", p, err)
			continue
		}
		s.ports = append(s.ports, boundPort{port: p, ln: ln})
	}

	if s.TLSConfig != nil {
		for p := range wantTLS {
			if s.hasPort(p, true) {
				continue
			}
			ln, err := listen(p)
			if err != nil {
				log.Printf("ERROR: listen TLS port %d: %v", p, err)
				continue
			}
			s.ports = append(s.ports, boundPort{port: p, tls: true, ln: tls.NewListener(ln, s.TLSConfig)})
		}
	}

	if requested > 0 && len(s.ports) == 0 {
		return fmt.Errorf("listener: requested %d port(s) but none could be opened", requested)
	}
	return nil
}

func (s *Server) hasPort(port int, isTLS bool) bool {
	for _, bp := range s.ports {
		if bp.port == port && bp.tls == isTLS {
			return true
		}
	}
	return false
}

func toSet(ports []int) map[int]bool {
	m := make(map[int]bool, len(ports))
	for _, p := range ports {
		m[p] = true
	}
	return m
}

// Listeners returns the currently bound listeners, for the event
// loop's readiness set.
func (s *Server) Listeners() []net.Listener {
	ls := make([]net.Listener, 0, len(s.ports))
	for _, bp := range s.ports {
		ls = append(ls, bp.ln)
	}
	sort.Slice(ls, func(i, j int) bool { return fmt.Sprint(ls[i].Addr()) < fmt.Sprint(ls[j].Addr()) })
	return ls
}

// NewConnection accepts one connection from ln and initializes a
// descriptor for it. It returns nil if the peer was refused or the
// accept itself failed.
func (s *Server) NewConnection(ln net.Listener, localPort int) *descriptor.Descriptor {
	conn, err := ln.Accept()
	if err != nil {
		log.Printf("ERROR: accept on port %d: %v", localPort, err)
		return nil
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)

	if s.Access.Check(ip) == Forbidden {
		conn.Write(s.Files.ConnectionRefused())
		conn.Close()
		s.Monitor.Notify("site-monitor", fmt.Sprintf("refused connection from %s", host))
		return nil
	}

	if tc, ok := conn.(*tls.Conn); ok {
		if err := tc.Handshake(); err != nil {
			log.Printf("ERROR: TLS handshake on port %d: %v", localPort, err)
			conn.Close()
			return nil
		}
	}

	d := descriptor.New(conn, s.OutputCapBytes)
	d.SetLimits(s.Limits)

	if s.Resolver != nil && s.Resolver.Alive() {
		rport := 0
		if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			rport = tcpAddr.Port
		}
		if w := s.Resolver.Conn(); w != nil {
			slave.RequestResolve(w, host, rport, localPort)
		}
	}

	if s.OnAccept != nil {
		s.OnAccept(d)
	}

	s.List.Add(d)
	s.Monitor.Notify("site-monitor", fmt.Sprintf("Connection: %s", host))
	conn.Write(s.Files.Welcome())
	return d
}

// Shutdown tears a descriptor down. LOGOUT is special: the socket is
// retained, session state reset, and the welcome banner re-issued
// (unless the peer has since become FORBIDDEN, in which case the
// reason is coerced to QUIT).
func (s *Server) Shutdown(d *descriptor.Descriptor, reason descriptor.DisconnectReason) {
	if d.Connected() {
		s.Accounting.RecordDisconnect(d, reason)
		s.Monitor.Notify("site-monitor", fmt.Sprintf("Disconnect (%s): %s", reason, d.Addr()))
	}

	if reason == descriptor.Logout {
		ip := net.ParseIP(d.Addr())
		if ip != nil && s.Access.Check(ip) == Forbidden {
			s.Shutdown(d, descriptor.Quit)
			return
		}
		d.ResetForLogout()
		d.SetConnected(true)
		conn := d.Conn
		if conn != nil {
			conn.Write(s.Files.Welcome())
		}
		return
	}

	d.SetConnected(false)
	if d.Conn != nil {
		d.Out.Drain(d.Conn)
		d.Out.Reset()
		d.Conn.Close()
	}
	s.List.Remove(d.ID)
}

// FormatDisconnectLine renders the disconnect accounting log line:
// "<dbref> <flags> <cmds> <secs> <loc> <money> [<site>] <reason>
// <name>".
func FormatDisconnectLine(dbref int, flags string, cmds int, connectedFor time.Duration, loc, money int, site, reason, name string) string {
	secs := int(connectedFor.Seconds())
	if site != "" {
		return fmt.Sprintf("%d %s %d %d %d %d [%s] %s %s", dbref, flags, cmds, secs, loc, money, site, reason, name)
	}
	return fmt.Sprintf("%d %s %d %d %d %d %s %s", dbref, flags, cmds, secs, loc, money, reason, name)
}
