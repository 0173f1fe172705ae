package slave

import (
	"net"
	"strconv"

	"github.com/stlalpha/muxcore/internal/descriptor"
)

// ApplyHostname matches a resolved hostname line against every
// descriptor whose addr currently equals the reported IP, replacing
// addr with the hostname.
func ApplyHostname(list *descriptor.List, rec HostnameRecord) {
	if rec.IP == "" || rec.Host == "" {
		return
	}
	for _, d := range list.Snapshot() {
		d.CompareAndSetAddr(rec.IP, rec.Host)
	}
}

// ApplyIdent matches an ident reply against the descriptor with the
// same peer remote port, copying the userid into username (10 chars
// max).
func ApplyIdent(list *descriptor.List, ident identInfo) {
	for _, d := range list.Snapshot() {
		if remotePort(d) != ident.RemotePort {
			continue
		}
		u := ident.UserID
		if len(u) > 10 {
			u = u[:10]
		}
		d.SetUsername(u)
	}
}

func remotePort(d *descriptor.Descriptor) int {
	if d.PeerAddr == nil {
		return -1
	}
	_, portStr, err := net.SplitHostPort(d.PeerAddr.String())
	if err != nil {
		return -1
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return -1
	}
	return p
}
