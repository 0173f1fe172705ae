package nvt

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/stlalpha/muxcore/internal/descriptor"
)

// Parser drives one descriptor's byte stream through the NVT DFA. It
// holds no state of its own beyond the descriptor it was built for;
// all per-connection state (raw_input, option tables, encoding) lives
// on the descriptor itself so the parser can be stateless and cheap
// to construct per read.
type Parser struct {
	d *descriptor.Descriptor

	// OnLine receives each completed input line (action 3).
	OnLine func(line []byte)

	// TLSEnabled gates whether STARTTLS is offered to the peer at all.
	TLSEnabled bool

	// StartTLS performs the server-side handshake when the peer
	// confirms STARTTLS FOLLOWS. A non-nil error forces the descriptor
	// closed with reason RESTART.
	StartTLS func(d *descriptor.Descriptor) error
}

// New returns a Parser bound to d.
func New(d *descriptor.Descriptor, onLine func(line []byte)) *Parser {
	return &Parser{d: d, OnLine: onLine}
}

// Feed processes one chunk of raw bytes read from the socket.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.step(b)
	}
}

func (p *Parser) step(b byte) {
	d := p.d
	cls := classify(b)
	tr := actionTable[d.RawInputState][cls]
	d.RawInputState = tr.next

	switch tr.action {
	case actAcceptChar:
		p.acceptChar(b)
	case actErase:
		p.erase(b)
	case actAcceptLine:
		line := d.AppendLine()
		if p.OnLine != nil {
			p.OnLine(line)
		}
	case actReturnNormal:
		// no-op: state already reset to Normal by tr.next
	case actEnterIAC, actEnterWill, actEnterDont, actEnterDo, actEnterWont, actEnterSB:
		// no side effect beyond the state transition already applied
	case actEnterSBIAC:
		// no-op: awaiting SE or an escaped IAC
	case actEscapedIACData:
		p.acceptChar(0xFF)
	case actAYT:
		d.Out.Queue([]byte("\r\n[Yes]\r\n"))
	case actNegotiateWill:
		p.negotiateWill(b)
	case actNegotiateWont:
		p.negotiateWont(b)
	case actNegotiateDo:
		p.negotiateDo(b)
	case actNegotiateDont:
		p.negotiateDont(b)
	case actAppendSubopt:
		if len(d.OptionPayload) < d.SBufMax() {
			d.OptionPayload = append(d.OptionPayload, b)
		}
	case actCommitSubopt:
		p.commitSubopt()
		d.OptionPayload = nil
	}
}

// acceptChar implements action 1: admit a printable input byte,
// honoring the descriptor's active encoding.
func (p *Parser) acceptChar(b byte) {
	d := p.d
	switch d.Encoding {
	case descriptor.UTF8:
		partial, res := feedCodepoint(d.CodepointPartial, b)
		switch res {
		case cpNeedMore:
			d.CodepointPartial = partial
		case cpComplete:
			p.appendToLine(partial)
			d.CodepointPartial = nil
		case cpInvalid:
			d.InputLost += int64(len(partial))
			d.CodepointPartial = nil
		}
	case descriptor.Latin1:
		if isPrintableLatin1(b) {
			out, err := charmap.ISO8859_1.NewDecoder().Bytes([]byte{b})
			if err == nil {
				p.appendToLine(out)
			} else {
				d.InputLost++
			}
		}
		// non-printable Latin-1 bytes are silently ignored (not lost;
		// they were never going to become line content).
	case descriptor.ASCII:
		if b >= 0x20 && b < 0x7F {
			p.appendToLine([]byte{b})
		}
	}
}

func (p *Parser) appendToLine(encoded []byte) {
	d := p.d
	if len(d.RawInput)+len(encoded) > d.LineMax() {
		overflow := len(d.RawInput) + len(encoded) - d.LineMax()
		if overflow > len(encoded) {
			overflow = len(encoded)
		}
		d.InputLost += int64(overflow)
		encoded = encoded[:len(encoded)-overflow]
	}
	d.RawInput = append(d.RawInput, encoded...)
}

func isPrintableLatin1(b byte) bool {
	if b < 0x20 || (b >= 0x7F && b <= 0x9F) {
		return false
	}
	return true
}

// erase implements action 2 (BS/DEL, or the telnet EC command).
// triggerByte distinguishes a raw BS (0x08) from DEL (0x7F) for the
// echo sequence; any other triggering byte (the IAC EC command) uses
// the DEL-style echo.
func (p *Parser) erase(triggerByte byte) {
	d := p.d

	if d.Encoding == descriptor.UTF8 && len(d.CodepointPartial) > 0 {
		d.CodepointPartial = nil
	}

	if len(d.RawInput) > 0 {
		r, size := utf8.DecodeLastRune(d.RawInput)
		if r != utf8.RuneError || size > 0 {
			d.RawInput = d.RawInput[:len(d.RawInput)-size]
		}
	}

	if triggerByte == 0x08 {
		d.Out.Queue([]byte("\b \b"))
	} else {
		d.Out.Queue([]byte(" \b"))
	}
}

func (p *Parser) sendIAC(cmd byte, opt byte) {
	p.d.Out.Queue([]byte{cmdIAC, cmd, opt})
}

func (p *Parser) negotiateDo(opt byte) {
	d := p.d
	becameYes := requestToEnable(&d.UsState[opt], desiredUs(opt, d.UsState[OptEOR]),
		func() { p.sendIAC(cmdWILL, opt) },
		func() { p.sendIAC(cmdWONT, opt) },
	)
	if becameYes {
		p.onUsYes(opt)
	}
}

func (p *Parser) negotiateDont(opt byte) {
	d := p.d
	requestToDisable(&d.UsState[opt],
		func() { p.sendIAC(cmdWONT, opt) },
		func() { p.sendIAC(cmdWILL, opt) },
	)
}

func (p *Parser) negotiateWill(opt byte) {
	d := p.d
	becameYes := requestToEnable(&d.HimState[opt], desiredHim(opt, p.TLSEnabled),
		func() { p.sendIAC(cmdDO, opt) },
		func() { p.sendIAC(cmdDONT, opt) },
	)
	if becameYes {
		p.onHimYes(opt)
	}
}

func (p *Parser) negotiateWont(opt byte) {
	d := p.d
	becameNo := requestToDisable(&d.HimState[opt],
		func() { p.sendIAC(cmdDONT, opt) },
		func() { p.sendIAC(cmdDO, opt) },
	)
	if becameNo && opt == OptBinary {
		p.disableUs(OptBinary)
	}
}

// onUsYes fires the side effects of a Q-method transition of our own
// negotiated state for opt to YES.
func (p *Parser) onUsYes(opt byte) {
	if opt == OptEOR {
		p.enableUs(OptSGA)
	}
}

// onHimYes fires the side effects of the peer's negotiated state for
// opt transitioning to YES.
func (p *Parser) onHimYes(opt byte) {
	d := p.d
	switch opt {
	case OptTType:
		d.Out.Queue([]byte{cmdIAC, cmdSB, OptTType, subSEND, cmdIAC, cmdSE})
	case OptNewEnviron:
		d.Out.Queue([]byte{cmdIAC, cmdSB, OptNewEnviron, subSEND, envVar, envUserVar, cmdIAC, cmdSE})
	case OptCharset:
		payload := []byte{cmdIAC, cmdSB, OptCharset, subRequest}
		payload = append(payload, ';', 'U', 'T', 'F', '-', '8', ';', 'I', 'S', 'O', '-', '8', '8', '5', '9', '-', '1', ';', 'U', 'S', '-', 'A', 'S', 'C', 'I', 'I')
		payload = append(payload, cmdIAC, cmdSE)
		d.Out.Queue(payload)
	case OptStartTLS:
		d.Out.Queue([]byte{cmdIAC, cmdSB, OptStartTLS, subFollows, cmdIAC, cmdSE})
	case OptBinary:
		p.enableUs(OptBinary)
	}
}

func (p *Parser) enableUs(opt byte) {
	initiateEnable(&p.d.UsState[opt], func() { p.sendIAC(cmdWILL, opt) })
}

func (p *Parser) disableUs(opt byte) {
	initiateDisable(&p.d.UsState[opt], func() { p.sendIAC(cmdWONT, opt) })
}

func (p *Parser) enableHim(opt byte) {
	initiateEnable(&p.d.HimState[opt], func() { p.sendIAC(cmdDO, opt) })
}

// commitSubopt dispatches on the completed sub-option payload once SE
// has closed it.
func (p *Parser) commitSubopt() {
	d := p.d
	payload := d.OptionPayload
	if len(payload) == 0 {
		return
	}

	switch payload[0] {
	case OptNAWS:
		if len(payload) == 5 {
			d.Width = int(payload[1])<<8 | int(payload[2])
			d.Height = int(payload[3])<<8 | int(payload[4])
		}
	case OptTType:
		if len(payload) >= 2 && payload[1] == subIS {
			d.TermType = string(payload[2:])
		}
	case OptNewEnviron, OptOldEnviron:
		if len(payload) >= 2 && payload[1] == subIS {
			p.parseEnviron(payload[2:])
		}
	case OptCharset:
		if len(payload) >= 2 {
			switch payload[1] {
			case subAccepted:
				p.applyCharsetName(string(payload[2:]))
			case subRejected:
				d.Encoding = descriptor.ASCII
				d.NegotiatedEncoding = descriptor.ASCII
				p.disableUs(OptBinary)
			}
		}
	case OptStartTLS:
		if len(payload) >= 2 && payload[1] == subFollows && p.StartTLS != nil {
			if err := p.StartTLS(d); err != nil {
				d.RequestClose(descriptor.Restart)
			}
		}
	}
}

func (p *Parser) applyCharsetName(name string) {
	d := p.d
	switch strings.ToUpper(name) {
	case "UTF-8":
		d.Encoding = descriptor.UTF8
		d.NegotiatedEncoding = descriptor.UTF8
		d.CodepointState = 0
		d.CodepointPartial = nil
		p.enableUs(OptBinary)
		p.enableHim(OptBinary)
	case "ISO-8859-1", "LATIN1":
		d.Encoding = descriptor.Latin1
		d.NegotiatedEncoding = descriptor.Latin1
		p.enableUs(OptBinary)
		p.enableHim(OptBinary)
	case "US-ASCII", "ASCII":
		d.Encoding = descriptor.ASCII
		d.NegotiatedEncoding = descriptor.ASCII
		p.disableUs(OptBinary)
	}
}

// parseEnviron walks (VAR|USERVAR name VALUE value) records per
// RFC 1572, recognizing LC_CTYPE/LC_ALL (switches encoding to UTF-8 on
// a ".utf-8" locale suffix) and USER (bounded to 10 chars).
func (p *Parser) parseEnviron(body []byte) {
	type record struct {
		name  []byte
		value []byte
	}
	var records []record

	i := 0
	for i < len(body) {
		if body[i] != envVar && body[i] != envUserVar {
			i++
			continue
		}
		i++
		nameStart := i
		for i < len(body) && body[i] != envValue && body[i] != envVar && body[i] != envUserVar {
			i++
		}
		name := body[nameStart:i]
		var value []byte
		if i < len(body) && body[i] == envValue {
			i++
			valStart := i
			for i < len(body) && body[i] != envVar && body[i] != envUserVar {
				i++
			}
			value = body[valStart:i]
		}
		records = append(records, record{name, value})
	}

	d := p.d
	for _, r := range records {
		name := strings.ToUpper(string(r.name))
		switch name {
		case "LC_CTYPE", "LC_ALL":
			val := string(r.value)
			if idx := strings.LastIndexByte(val, '.'); idx >= 0 {
				locale := strings.ToLower(val[idx+1:])
				if locale == "utf-8" && d.Encoding != descriptor.UTF8 {
					d.Encoding = descriptor.UTF8
					d.NegotiatedEncoding = descriptor.UTF8
					d.CodepointState = 0
					d.CodepointPartial = nil
					p.enableUs(OptBinary)
					p.enableHim(OptBinary)
				}
			}
		case "USER":
			u := string(r.value)
			if len(u) > 10 {
				u = u[:10]
			}
			d.SetUsername(u)
		}
	}
}

// StartNegotiation offers the telnet options the server always asks
// for on a fresh connection: NAWS, EOR, CHARSET, NEW-ENVIRON, TTYPE.
func (p *Parser) StartNegotiation() {
	p.enableHim(OptNAWS)
	p.enableHim(OptEOR)
	p.enableHim(OptCharset)
	p.enableHim(OptNewEnviron)
	p.enableHim(OptTType)
	if p.TLSEnabled {
		p.enableHim(OptStartTLS)
	}
}
