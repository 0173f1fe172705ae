package flags

// Bit positions within each flag word. Values are assigned sequentially
// per word; they carry no meaning beyond uniqueness within their word,
// matching the legacy design's bit layout in spirit (the original
// numeric values are an implementation detail of TinyMUX's object
// format, not part of the wire or display protocol).
const (
	bitHearthru uint32 = 1 << iota
	bitChownOk
	bitDark
	bitDestroyOk
	bitEnterOk
	bitGoing
	bitHalt
	bitHasStartup
	bitHaven
	bitImmortal
	bitInherit
	bitJumpOk
	bitLinkOk
	bitMonitor
	bitMyopic
	bitNospoof
	bitOpaque
	bitQuiet
	bitRobot
	bitRoyalty
	bitSafe
	bitSticky
	bitTerse
	bitTrace
	bitSeethru
	bitVerbose
	bitVisual
	bitWizard
	bitPuppet
)

const (
	bitAbode uint32 = 1 << iota
	bitAnsi
	bitAuditorium
	bitBlind
	bitConnected
	bitFixed
	bitFloating
	bitGagged
	bitHasDaily
	bitHasFwdlist
	bitHasListen
	bitHeadFlag
	bitHtml
	bitKeyFlag
	bitKeepalive
	bitLight
	bitNoCommand
	bitNoAccents
	bitNoBleed
	bitOpenOk
	bitParentOk
	bitPlayerMails
	bitSlave
	bitStaff
	bitSuspect
	bitUnfindable
	bitUninspected
	bitVacation
)

const (
	bitSitemon uint32 = 1 << iota
)

// NewDefaultRegistry returns a Registry seeded with the canonical
// TinyMUX flag roster (flags.cpp's static FLAGBITENT table). Every
// handler kind except HStaff and HPrivileged is used by at least one
// entry.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	type row struct {
		name   string
		bit    uint32
		word   Word
		letter byte
		perm   ListPerm
		kind   HandlerKind
	}

	rows := []row{
		// Word 1
		{"HEARTHRU", bitHearthru, Word1, 'a', Public, HHearBit},
		{"CHOWN_OK", bitChownOk, Word1, 'C', Public, HAny},
		{"DARK", bitDark, Word1, 'D', Public, HDarkBit},
		{"DESTROY_OK", bitDestroyOk, Word1, 'd', Public, HAny},
		{"ENTER_OK", bitEnterOk, Word1, 'e', Public, HAny},
		{"GOING", bitGoing, Word1, 'G', NoDecomp, HGoingBit},
		{"HALT", bitHalt, Word1, 'h', Public, HAny},
		{"HAS_STARTUP", bitHasStartup, Word1, '+', God | NoDecomp, HGod},
		{"HAVEN", bitHaven, Word1, 'H', Public, HAny},
		{"IMMORTAL", bitImmortal, Word1, 'i', Public, HWiz},
		{"INHERIT", bitInherit, Word1, 'I', Public, HInherit},
		{"JUMP_OK", bitJumpOk, Word1, 'J', Public, HAny},
		{"LINK_OK", bitLinkOk, Word1, 'L', Public, HAny},
		{"MONITOR", bitMonitor, Word1, 'M', Public, HHearBit},
		{"MYOPIC", bitMyopic, Word1, 'm', Public, HAny},
		{"NOSPOOF", bitNospoof, Word1, 'N', Public, HAny},
		{"OPAQUE", bitOpaque, Word1, 'O', Public, HAny},
		{"QUIET", bitQuiet, Word1, 'Q', Public, HAny},
		{"ROBOT", bitRobot, Word1, 'r', Public, HPlayerBit},
		{"ROYALTY", bitRoyalty, Word1, 'Z', Public, HWiz},
		{"SAFE", bitSafe, Word1, 's', Public, HAny},
		{"STICKY", bitSticky, Word1, 'S', Public, HAny},
		{"TERSE", bitTerse, Word1, 'q', Public, HAny},
		{"TRACE", bitTrace, Word1, 'T', Public, HAny},
		{"SEETHRU", bitSeethru, Word1, 't', Public, HAny},
		{"VERBOSE", bitVerbose, Word1, 'v', Public, HAny},
		{"VISUAL", bitVisual, Word1, 'V', Public, HAny},
		{"WIZARD", bitWizard, Word1, 'W', Public, HGod},
		{"PUPPET", bitPuppet, Word1, 'p', Public, HHearBit},

		// Word 2
		{"ABODE", bitAbode, Word2, 'A', Public, HAny},
		{"ANSI", bitAnsi, Word2, 'X', Public, HAny},
		{"AUDITORIUM", bitAuditorium, Word2, 'b', Public, HAny},
		{"BLIND", bitBlind, Word2, 'B', Public, HWiz},
		{"CONNECTED", bitConnected, Word2, 'c', NoDecomp, HGod},
		{"FIXED", bitFixed, Word2, 'f', Public, HRestrictPlayer},
		{"FLOATING", bitFloating, Word2, 'F', Public, HAny},
		{"GAGGED", bitGagged, Word2, 'j', Public, HWiz},
		{"HAS_DAILY", bitHasDaily, Word2, '*', God | NoDecomp, HGod},
		{"HAS_FWDLIST", bitHasFwdlist, Word2, '&', God | NoDecomp, HGod},
		{"HAS_LISTEN", bitHasListen, Word2, '@', God | NoDecomp, HGod},
		{"HEAD_FLAG", bitHeadFlag, Word2, '?', Public, HWiz},
		{"HTML", bitHtml, Word2, '(', Public, HAny},
		{"KEY", bitKeyFlag, Word2, 'K', Public, HAny},
		{"KEEPALIVE", bitKeepalive, Word2, 'k', Public, HAny},
		{"LIGHT", bitLight, Word2, 'l', Public, HAny},
		{"NO_COMMAND", bitNoCommand, Word2, 'n', Public, HAny},
		{"NOACCENTS", bitNoAccents, Word2, '~', Public, HAny},
		{"NOBLEED", bitNoBleed, Word2, '-', Public, HAny},
		{"OPEN_OK", bitOpenOk, Word2, 'z', Public, HWiz},
		{"PARENT_OK", bitParentOk, Word2, 'Y', Public, HAny},
		{"PLAYER_MAILS", bitPlayerMails, Word2, ' ', God | NoDecomp, HGod},
		{"SLAVE", bitSlave, Word2, 'x', Wizard, HWiz},
		{"STAFF", bitStaff, Word2, 'w', Public, HWiz},
		{"SUSPECT", bitSuspect, Word2, 'u', Wizard, HWiz},
		{"UNFINDABLE", bitUnfindable, Word2, 'U', Public, HAny},
		{"UNINSPECTED", bitUninspected, Word2, 'g', Public, HWizRoy},
		{"VACATION", bitVacation, Word2, '|', Public, HRestrictPlayer},

		// Word 3
		{"SITEMON", bitSitemon, Word3, '$', Public, HWiz},
	}

	for _, rw := range rows {
		r.Define(rw.name, rw.bit, rw.word, rw.letter, rw.perm, rw.kind)
	}

	SetMonitorBit(Word1, bitMonitor)

	return r
}
