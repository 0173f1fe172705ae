package nvt

import "github.com/stlalpha/muxcore/internal/descriptor"

// desiredHim reports whether we want the peer to enable opt on their
// side: NAWS, EOR, SGA, NEW-ENVIRON, BINARY, CHARSET, and STARTTLS
// when TLS support is compiled in.
func desiredHim(opt byte, tlsEnabled bool) bool {
	switch int(opt) {
	case OptNAWS, OptEOR, OptSGA, OptNewEnviron, OptBinary, OptCharset:
		return true
	case OptStartTLS:
		return tlsEnabled
	default:
		return false
	}
}

// desiredUs reports whether we offer to enable opt on our side: EOR
// and BINARY unconditionally, SGA only once EOR has already succeeded.
func desiredUs(opt byte, usEOR descriptor.QState) bool {
	switch int(opt) {
	case OptEOR, OptBinary:
		return true
	case OptSGA:
		return usEOR == descriptor.QYes
	default:
		return false
	}
}

// requestToEnable processes a peer request that we (or they) turn an
// option on: DO against us_state, WILL against him_state. It reports
// whether this call is the transition into QYes, since several
// sub-protocols only kick off the first time an option comes up.
func requestToEnable(state *descriptor.QState, desired bool, sendYes, sendNo func()) (becameYes bool) {
	prev := *state
	switch prev {
	case descriptor.QNo:
		if desired {
			*state = descriptor.QYes
			sendYes()
		} else {
			sendNo()
		}
	case descriptor.QWantNoEmpty:
		*state = descriptor.QNo
	case descriptor.QWantNoOpposite:
		*state = descriptor.QYes
	case descriptor.QWantYesEmpty:
		*state = descriptor.QYes
	case descriptor.QWantYesOpposite:
		*state = descriptor.QWantNoEmpty
		sendNo()
	case descriptor.QYes:
		// already yes, no-op
	}
	return prev != descriptor.QYes && *state == descriptor.QYes
}

// requestToDisable processes a peer notice that an option is off:
// DONT against us_state, WONT against him_state.
func requestToDisable(state *descriptor.QState, sendNo, sendYes func()) (becameNo bool) {
	prev := *state
	switch prev {
	case descriptor.QYes:
		*state = descriptor.QNo
		sendNo()
	case descriptor.QWantNoOpposite:
		*state = descriptor.QWantYesEmpty
		sendYes()
	default:
		*state = descriptor.QNo
	}
	return prev != descriptor.QNo && *state == descriptor.QNo
}

// initiateEnable actively starts negotiation to turn opt on (the
// RFC 1143 "announce" half of the Q method), used when we decide on
// our own to request a capability rather than reacting to the peer.
func initiateEnable(state *descriptor.QState, send func()) {
	switch *state {
	case descriptor.QNo:
		*state = descriptor.QWantYesEmpty
		send()
	case descriptor.QWantNoEmpty:
		*state = descriptor.QWantNoOpposite
	default:
		// already yes or already in flight toward yes
	}
}

// initiateDisable actively starts negotiation to turn opt off.
func initiateDisable(state *descriptor.QState, send func()) {
	switch *state {
	case descriptor.QYes:
		*state = descriptor.QWantNoEmpty
		send()
	case descriptor.QWantYesEmpty:
		*state = descriptor.QWantYesOpposite
	default:
		// already no or already in flight toward no
	}
}
