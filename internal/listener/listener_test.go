package listener

import (
	"net"
	"testing"
	"time"

	"github.com/stlalpha/muxcore/internal/descriptor"
)

type denyList struct{ denied net.IP }

func (d denyList) Check(ip net.IP) AccessResult {
	if d.denied != nil && ip != nil && ip.Equal(d.denied) {
		return Forbidden
	}
	return Allowed
}

type recordingMonitor struct{ events []string }

func (m *recordingMonitor) Notify(event, detail string) {
	m.events = append(m.events, event+": "+detail)
}

type recordingAccounting struct{ calls int }

func (a *recordingAccounting) RecordDisconnect(*descriptor.Descriptor, descriptor.DisconnectReason) {
	a.calls++
}

func newLoopbackServer(t *testing.T) *Server {
	t.Helper()
	list := descriptor.NewList()
	srv := NewServer(list)
	if err := srv.SetupPorts([]int{0}, nil); err != nil {
		t.Fatalf("SetupPorts: %v", err)
	}
	return srv
}

func TestSetupPortsOpensAndClosesToConverge(t *testing.T) {
	srv := newLoopbackServer(t)
	if len(srv.Listeners()) != 1 {
		t.Fatalf("expected 1 listener after initial setup, got %d", len(srv.Listeners()))
	}
	firstAddr := srv.Listeners()[0].Addr().String()

	// Requesting the same port again must be a no-op (no new bind).
	port := srv.ports[0].port
	if err := srv.SetupPorts([]int{port}, nil); err != nil {
		t.Fatalf("SetupPorts (reconverge): %v", err)
	}
	if len(srv.Listeners()) != 1 || srv.Listeners()[0].Addr().String() != firstAddr {
		t.Fatal("expected the bound listener to be left alone when still requested")
	}

	// Requesting an empty set must close everything.
	if err := srv.SetupPorts(nil, nil); err != nil {
		t.Fatalf("SetupPorts (drain): %v", err)
	}
	if len(srv.Listeners()) != 0 {
		t.Fatalf("expected 0 listeners after dropping all requested ports, got %d", len(srv.Listeners()))
	}
}

func TestSetupPortsFatalWhenNoneCanBeOpened(t *testing.T) {
	list := descriptor.NewList()
	srv := NewServer(list)
	// Port -1 is not a valid TCP port, so listening on it always fails;
	// with it as the only requested port, SetupPorts must report that
	// none could be opened.
	if err := srv.SetupPorts([]int{-1}, nil); err == nil {
		t.Fatal("expected an error when the only requested port cannot be opened")
	}
}

func TestNewConnectionRefusesForbiddenPeer(t *testing.T) {
	srv := newLoopbackServer(t)
	monitor := &recordingMonitor{}
	srv.Monitor = monitor
	srv.Files = StaticFileCache{RefusedText: []byte("go away\r\n")}

	addr := srv.Listeners()[0].Addr().(*net.TCPAddr)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	host, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	srv.Access = denyList{denied: net.ParseIP(host)}

	d := srv.NewConnection(srv.Listeners()[0], addr.Port)
	if d != nil {
		t.Fatal("expected refused connection to yield a nil descriptor")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, _ := conn.Read(buf)
	if string(buf[:n]) != "go away\r\n" {
		t.Fatalf("expected connection-refused bytes on the raw socket, got %q", buf[:n])
	}
	if len(monitor.events) != 1 {
		t.Fatalf("expected one site-monitor notification, got %d", len(monitor.events))
	}
	if srv.List.Len() != 0 {
		t.Fatal("expected no descriptor registered for a refused peer")
	}
}

func TestNewConnectionAcceptsAllowedPeer(t *testing.T) {
	srv := newLoopbackServer(t)
	srv.Files = StaticFileCache{WelcomeText: []byte("welcome\r\n")}

	addr := srv.Listeners()[0].Addr().(*net.TCPAddr)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d := srv.NewConnection(srv.Listeners()[0], addr.Port)
	if d == nil {
		t.Fatal("expected a descriptor for an allowed peer")
	}
	if srv.List.Len() != 1 {
		t.Fatalf("expected descriptor registered in the list, got %d", srv.List.Len())
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, _ := conn.Read(buf)
	if string(buf[:n]) != "welcome\r\n" {
		t.Fatalf("expected welcome bytes, got %q", buf[:n])
	}
}

func TestShutdownLogoutRetainsSocketAndResetsState(t *testing.T) {
	srv := newLoopbackServer(t)
	srv.Files = StaticFileCache{WelcomeText: []byte("hi again\r\n")}
	accounting := &recordingAccounting{}
	srv.Accounting = accounting

	addr := srv.Listeners()[0].Addr().(*net.TCPAddr)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d := srv.NewConnection(srv.Listeners()[0], addr.Port)
	if d == nil {
		t.Fatal("expected a descriptor")
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	drainBuf := make([]byte, 64)
	conn.Read(drainBuf) // consume the initial welcome

	d.Player = 42
	socket := d.Conn

	srv.Shutdown(d, descriptor.Logout)

	if d.Conn != socket {
		t.Fatal("expected LOGOUT to retain the socket handle")
	}
	if d.Player != 0 {
		t.Fatalf("expected player reset to 0 after LOGOUT, got %d", d.Player)
	}
	if !d.Connected() {
		t.Fatal("expected descriptor to remain connected after LOGOUT")
	}
	if accounting.calls != 1 {
		t.Fatalf("expected disconnect accounting recorded once, got %d", accounting.calls)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(drainBuf)
	if err != nil || string(drainBuf[:n]) != "hi again\r\n" {
		t.Fatalf("expected re-issued welcome banner, got %q err=%v", drainBuf[:n], err)
	}
}

func TestShutdownLogoutCoercesToQuitWhenNowForbidden(t *testing.T) {
	srv := newLoopbackServer(t)
	addr := srv.Listeners()[0].Addr().(*net.TCPAddr)
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d := srv.NewConnection(srv.Listeners()[0], addr.Port)
	if d == nil {
		t.Fatal("expected a descriptor")
	}

	// The peer became forbidden since it connected.
	host, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	srv.Access = denyList{denied: net.ParseIP(host)}

	srv.Shutdown(d, descriptor.Logout)

	if d.Connected() {
		t.Fatal("expected LOGOUT coerced to QUIT to actually disconnect")
	}
	if srv.List.Len() != 0 {
		t.Fatal("expected descriptor removed from the list after coerced QUIT")
	}
}

func TestFormatDisconnectLineWithAndWithoutSite(t *testing.T) {
	withSite := FormatDisconnectLine(5, "DcWh", 12, 90*time.Second, 0, 100, "example.com", "QUIT", "Bob")
	want := "5 DcWh 12 90 0 100 [example.com] QUIT Bob"
	if withSite != want {
		t.Fatalf("got %q want %q", withSite, want)
	}

	withoutSite := FormatDisconnectLine(5, "DcWh", 12, 90*time.Second, 0, 100, "", "QUIT", "Bob")
	want = "5 DcWh 12 90 0 100 QUIT Bob"
	if withoutSite != want {
		t.Fatalf("got %q want %q", withoutSite, want)
	}
}
