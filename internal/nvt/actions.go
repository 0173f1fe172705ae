package nvt

import "github.com/stlalpha/muxcore/internal/descriptor"

// Action codes the input classifier's transition table can dispatch.
const (
	actAcceptChar = iota + 1
	actErase
	actAcceptLine
	actReturnNormal
	actEnterIAC
	actEnterWill
	actEnterDont
	actEnterDo
	actEnterWont
	actEnterSB
	actEnterSBIAC
	actEscapedIACData  // IAC IAC outside SB: literal 0xFF data byte
	actAYT
	actNegotiateWill
	actNegotiateDont
	actNegotiateDo
	actNegotiateWont
	actAppendSubopt
	actCommitSubopt
)

type transition struct {
	action int
	next   descriptor.InputState
}

// actionTable is the 8-state x 14-class transition matrix. It is
// built once at init and never mutated; the states expecting a raw
// option or payload byte rather than a reclassified one (WILL/DONT/
// DO/WONT-pending and SB) collapse every class to a single action,
// since the byte there is data, not a command class.
var actionTable [8][numClasses]transition

func init() {
	for c := Class(0); c < numClasses; c++ {
		actionTable[descriptor.StateNormal][c] = transition{actAcceptChar, descriptor.StateNormal}
	}
	actionTable[descriptor.StateNormal][ClassBS] = transition{actErase, descriptor.StateNormal}
	actionTable[descriptor.StateNormal][ClassLF] = transition{actAcceptLine, descriptor.StateNormal}
	actionTable[descriptor.StateNormal][ClassCR] = transition{actReturnNormal, descriptor.StateNormal}
	actionTable[descriptor.StateNormal][ClassIAC] = transition{actEnterIAC, descriptor.StateIAC}

	for c := Class(0); c < numClasses; c++ {
		actionTable[descriptor.StateIAC][c] = transition{actReturnNormal, descriptor.StateNormal}
	}
	actionTable[descriptor.StateIAC][ClassIAC] = transition{actEscapedIACData, descriptor.StateNormal}
	actionTable[descriptor.StateIAC][ClassWILL] = transition{actEnterWill, descriptor.StateIACWill}
	actionTable[descriptor.StateIAC][ClassWONT] = transition{actEnterWont, descriptor.StateIACWont}
	actionTable[descriptor.StateIAC][ClassDO] = transition{actEnterDo, descriptor.StateIACDo}
	actionTable[descriptor.StateIAC][ClassDONT] = transition{actEnterDont, descriptor.StateIACDont}
	actionTable[descriptor.StateIAC][ClassSB] = transition{actEnterSB, descriptor.StateIACSB}
	actionTable[descriptor.StateIAC][ClassAYT] = transition{actAYT, descriptor.StateNormal}
	actionTable[descriptor.StateIAC][ClassEC] = transition{actErase, descriptor.StateNormal}

	for c := Class(0); c < numClasses; c++ {
		actionTable[descriptor.StateIACWill][c] = transition{actNegotiateWill, descriptor.StateNormal}
		actionTable[descriptor.StateIACWont][c] = transition{actNegotiateWont, descriptor.StateNormal}
		actionTable[descriptor.StateIACDo][c] = transition{actNegotiateDo, descriptor.StateNormal}
		actionTable[descriptor.StateIACDont][c] = transition{actNegotiateDont, descriptor.StateNormal}
	}

	for c := Class(0); c < numClasses; c++ {
		actionTable[descriptor.StateIACSB][c] = transition{actAppendSubopt, descriptor.StateIACSB}
	}
	actionTable[descriptor.StateIACSB][ClassIAC] = transition{actEnterSBIAC, descriptor.StateIACSBIAC}

	for c := Class(0); c < numClasses; c++ {
		actionTable[descriptor.StateIACSBIAC][c] = transition{actReturnNormal, descriptor.StateNormal}
	}
	actionTable[descriptor.StateIACSBIAC][ClassSE] = transition{actCommitSubopt, descriptor.StateNormal}
	actionTable[descriptor.StateIACSBIAC][ClassIAC] = transition{actAppendSubopt, descriptor.StateIACSB}
}
