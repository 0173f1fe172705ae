// Package slave implements out-of-process helper IPC: the reverse-DNS
// /ident resolver and the generic stub-RPC child. Both helpers are
// launched over a socket pair, pumped non-blockingly from the event
// loop, and reaped on death without ever blocking the main loop on a
// dead or slow child.
package slave

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Helper supervises one forked child process connected over a Unix
// datagram socket pair, per the legacy design's socketpair/fork/exec
// launch sequence (bsd.cpp boot_slave/boot_stubslave).
type Helper struct {
	mu      sync.Mutex
	name    string
	binPath string
	cmd     *exec.Cmd
	conn    *net.UnixConn
	alive   bool
}

// New constructs an unlaunched helper for the given binary.
func New(name, binPath string) *Helper {
	return &Helper{name: name, binPath: binPath}
}

// Launch forks/execs the helper binary with its stdio replaced by one
// end of an AF_UNIX SOCK_DGRAM socket pair, keeping the other end
// non-blocking in the parent. Failure to launch closes anything
// partially created and returns an error; the caller is expected to
// log it and continue without the helper until an explicit restart.
func (h *Helper) Launch() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("slave: socketpair for %s: %w", h.name, err)
	}
	parentFile := os.NewFile(uintptr(fds[0]), h.name+"-parent")
	childFile := os.NewFile(uintptr(fds[1]), h.name+"-child")

	parentConnIface, err := net.FileConn(parentFile)
	parentFile.Close()
	if err != nil {
		childFile.Close()
		return fmt.Errorf("slave: wrap parent fd for %s: %w", h.name, err)
	}
	parentConn, ok := parentConnIface.(*net.UnixConn)
	if !ok {
		parentConnIface.Close()
		childFile.Close()
		return fmt.Errorf("slave: unexpected conn type for %s", h.name)
	}

	cmd := exec.Command(h.binPath)
	cmd.Stdin = childFile
	cmd.Stdout = childFile
	if err := cmd.Start(); err != nil {
		parentConn.Close()
		childFile.Close()
		return fmt.Errorf("slave: exec %s: %w", h.binPath, err)
	}
	childFile.Close()

	h.cmd = cmd
	h.conn = parentConn
	h.alive = true
	return nil
}

// Alive reports whether the helper process is believed live.
func (h *Helper) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

// Conn exposes the parent-side connection for the event loop's
// readiness set. Reads and writes must be treated as non-blocking by
// the caller.
func (h *Helper) Conn() *net.UnixConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// WaitForExit blocks until the helper process exits, then reaps it.
// It is meant to be run on its own goroutine per helper so the event
// loop observes child death without ever calling waitpid from the
// single suspension point in the main loop (spec §5).
func (h *Helper) WaitForExit() {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Wait()
	h.Reap()
}

// Reap marks the helper dead and releases its resources; called from
// the child-death handler or after a fatal I/O error. A helper death
// is detected via the child-reap handler and forces cleanup.
func (h *Helper) Reap() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
	if h.cmd != nil && h.cmd.Process != nil {
		h.cmd.Process.Kill()
		h.cmd.Wait()
	}
	h.alive = false
}

// identInfo is the parsed second line of a resolver reply.
type identInfo struct {
	RemotePort int
	LocalPort  int
	OS         string
	UserID     string
}

// HostnameRecord is the parsed first line of a resolver reply.
type HostnameRecord struct {
	IP   string
	Host string
}

// RequestResolve writes the two newline-delimited request records for
// a freshly accepted connection, in the resolver helper's wire
// protocol.
func RequestResolve(w io.Writer, peerIP string, remotePort, localPort int) error {
	_, err := fmt.Fprintf(w, "%s\n%s,%d,%d\n", peerIP, peerIP, remotePort, localPort)
	return err
}

// ParseResolverReply parses one resolver reply: first line
// "<ip> <hostname>", second line
// "<ip> <remote-port> , <local-port> : <os> : <type> : <userid>".
// Malformed lines are dropped silently (ok1/ok2 report which lines
// parsed), matching the legacy design's goto-Done-on-sscanf-failure.
func ParseResolverReply(r io.Reader) (host HostnameRecord, ident identInfo, ok1, ok2 bool) {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 {
			host = HostnameRecord{IP: fields[0], Host: fields[1]}
			ok1 = true
		}
	}
	if sc.Scan() {
		parts := strings.SplitN(sc.Text(), ":", 4)
		if len(parts) == 4 {
			// parts[0] is "<ip> <remote-port> , <local-port> "; head[0] is
			// the peer IP, already known from the first line.
			head := strings.Fields(parts[0])
			if len(head) == 4 && head[2] == "," {
				var rp, lp int
				if _, err := fmt.Sscanf(head[1]+" "+head[3], "%d %d", &rp, &lp); err == nil {
					ident = identInfo{
						RemotePort: rp,
						LocalPort:  lp,
						OS:         strings.TrimSpace(parts[1]),
						UserID:     strings.TrimSpace(parts[3]),
					}
					ok2 = true
				}
			}
		}
	}
	return host, ident, ok1, ok2
}

// CorrelationID tags an in-flight stub-RPC request for log
// correlation across the child boundary.
func CorrelationID() string { return uuid.NewString() }
