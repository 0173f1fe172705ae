package flags

import (
	"sort"
	"strings"
)

// Viewer is the minimal privilege view DecodeFlags/ConvertFlags need
// about who is looking.
type Viewer interface {
	Actor
	ListPerm() ListPerm
}

// TypeInfo supplies the object-type letter (spec §4.1 "decode_flags")
// and whether the target is a wizard with DARK set, for the
// CONNECTED-visibility special case.
type TypeInfo struct {
	TypeLetter      byte // 0 means blank (no type letter)
	TargetIsWizard  bool
	TargetDarkIsSet bool
}

// visible reports whether e should be shown to viewer, per spec §4.1
// "Visibility rule".
func visible(e *Entry, viewer Viewer, set Set, typ TypeInfo, connectedEntry *Entry) bool {
	viewerPerm := viewer.ListPerm()
	if !permSatisfied(e.ListPerm, viewerPerm) {
		return false
	}
	if connectedEntry != nil && e == connectedEntry {
		if typ.TargetIsWizard && typ.TargetDarkIsSet && !privilegedViewer(viewerPerm) {
			return false
		}
	}
	return true
}

// permSatisfied reports whether every bit set in required is also set
// in have.
func permSatisfied(required, have ListPerm) bool {
	return required&^have == 0
}

func privilegedViewer(perm ListPerm) bool {
	return perm&(Staff|Admin|Wizard|God) != 0
}

// DecodeFlags renders set as a short display string: the object-type
// letter (unless blank), then each positive-polarity set flag's
// letter in alphabetical order of flag name, filtered by visibility. If the first
// displayable character would be an ASCII digit with no preceding type
// letter, a colon is prefixed to avoid ambiguity with a dbref.
func (r *Registry) DecodeFlags(viewer Viewer, set Set, typ TypeInfo) string {
	connectedEntry, _ := r.Lookup("connected")

	entries := r.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b strings.Builder
	if typ.TypeLetter != 0 {
		b.WriteByte(typ.TypeLetter)
	}

	for _, e := range entries {
		if !e.Positive || e.Letter == ' ' || e.Letter == 0 {
			continue
		}
		if !set.Has(e.Word, e.Bit) {
			continue
		}
		if !visible(e, viewer, set, typ, connectedEntry) {
			continue
		}
		b.WriteByte(e.Letter)
	}

	out := b.String()
	if typ.TypeLetter == 0 && len(out) > 0 && out[0] >= '0' && out[0] <= '9' {
		out = ":" + out
	}
	return out
}

// ConvertFlags parses a letter string into a flag set. A ':' is
// skipped. Object-type letters are not recognised: the returned type
// letter is always 0, and no conflicting-type check is made. A letter
// that names no flag, or a flag the actor may not see, fails the whole
// call with ErrUnknownFlag and no partial set.
func (r *Registry) ConvertFlags(actor Viewer, letters string) (Set, byte, error) {
	var set Set
	var typeLetter byte

	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c == ':' {
			continue // leading digit-disambiguation marker, not a flag
		}
		e, ok := r.LookupByLetter(c)
		if !ok {
			return Set{}, 0, ErrUnknownFlag
		}
		if !visible(e, actor, set, TypeInfo{}, nil) {
			return Set{}, 0, ErrUnknownFlag
		}
		set = set.With(e.Word, e.Bit, true)
	}

	return set, typeLetter, nil
}
