package nvt

// Class is the input classification of a single raw byte, independent
// of parser state.
type Class int

const (
	ClassAny Class = iota
	ClassBS
	ClassLF
	ClassCR
	ClassSE
	ClassNOP
	ClassAYT
	ClassEC
	ClassSB
	ClassWILL
	ClassDONT
	ClassDO
	ClassWONT
	ClassIAC

	numClasses
)

// classTable is the 256-entry byte-to-class map. DEL (0x7F) classifies
// as BS for editing purposes, matching a raw backspace.
var classTable [256]Class

func init() {
	for i := range classTable {
		classTable[i] = ClassAny
	}
	classTable[0x08] = ClassBS
	classTable[0x7F] = ClassBS
	classTable[0x0A] = ClassLF
	classTable[0x0D] = ClassCR

	classTable[cmdSE] = ClassSE
	classTable[cmdNOP] = ClassNOP
	classTable[cmdDM] = ClassNOP
	classTable[cmdBRK] = ClassNOP
	classTable[cmdIP] = ClassNOP
	classTable[cmdAO] = ClassNOP
	classTable[cmdEL] = ClassNOP
	classTable[cmdGA] = ClassNOP
	classTable[cmdEOR] = ClassNOP
	classTable[cmdAYT] = ClassAYT
	classTable[cmdEC] = ClassEC
	classTable[cmdSB] = ClassSB
	classTable[cmdWILL] = ClassWILL
	classTable[cmdWONT] = ClassWONT
	classTable[cmdDO] = ClassDO
	classTable[cmdDONT] = ClassDONT
	classTable[cmdIAC] = ClassIAC
}

func classify(b byte) Class { return classTable[b] }
