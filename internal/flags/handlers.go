package flags

import "fmt"

// DefaultHandler returns the stock Handler implementation for a handler
// kind, ported from TinyMUX's flags.cpp fh_* family. Each handler is
// pure with respect to the flag bit except fh_hear_bit's hearability
// notification; failure returns never mutate.
func DefaultHandler(kind HandlerKind) Handler {
	switch kind {
	case HGod:
		return hGod
	case HWiz:
		return hWiz
	case HWizRoy:
		return hWizRoy
	case HStaff:
		return hStaff
	case HInherit:
		return hInherit
	case HRestrictPlayer:
		return hRestrictPlayer
	case HPrivileged:
		return hPrivileged
	case HDarkBit:
		return hDarkBit
	case HGoingBit:
		return hGoingBit
	case HHearBit:
		return hHearBit
	case HPlayerBit:
		return hPlayerBit
	default:
		return hAny
	}
}

// hAny always permits the mutation.
func hAny(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	return nil
}

func hGod(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

func hWiz(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.IsWizard() && !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

func hWizRoy(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.IsWizard() && !actor.IsRoyalty() && !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

func hStaff(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.IsStaff() && !actor.IsWizard() && !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

func hInherit(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.HasInherit() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

// hRestrictPlayer: anyone may set on non-players; only WIZARD may set
// on players.
func hRestrictPlayer(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if target.IsPlayer() && !actor.IsWizard() && !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}

// hPrivileged: GOD unconditionally; otherwise target must not be a
// player and target.IsSelfOwned(actor) must hold. Whether the actor
// already holds the flag is not checked.
func hPrivileged(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !actor.IsGod() {
		if target.IsPlayer() {
			return fmt.Errorf("Permission denied.")
		}
		if !target.IsSelfOwned(actor) {
			return fmt.Errorf("Permission denied.")
		}
	}
	return hAny(target, actor, e, set, fixingReset)
}

// hDarkBit refuses to set DARK on another player unless actor is
// WIZARD or is self with hide privilege. Clearing (set==false) and
// resets are always allowed.
func hDarkBit(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if set && !fixingReset && target.IsPlayer() {
		selfWithHide := target.Dbref() == selfDbref(actor) && actor.CanHide()
		if !selfWithHide && !actor.IsWizard() {
			return fmt.Errorf("Permission denied.")
		}
	}
	return hAny(target, actor, e, set, fixingReset)
}

// selfDbref extracts the actor's own dbref for the self-comparison
// hDarkBit needs; actors that don't identify as a dbref (e.g. tests)
// report -1, which never matches a real target.
func selfDbref(actor Actor) int {
	if d, ok := actor.(interface{ Dbref() int }); ok {
		return d.Dbref()
	}
	return -1
}

// ProtectedDbrefs names the canonical fixtures going_bit refuses to
// mark for destruction even for GOD (spec §4.1: "dbref 0, GOD, and the
// four configured rooms").
type ProtectedDbrefs struct {
	Zero, GodDbref, StartHome, StartRoom, DefaultHome, MasterRoom int
}

// goingProtected is package state supplying the protected-dbref set to
// hGoingBit; set it once at startup via SetProtectedDbrefs.
var goingProtected ProtectedDbrefs

// SetProtectedDbrefs configures the dbrefs hGoingBit must refuse to
// mark GOING.
func SetProtectedDbrefs(p ProtectedDbrefs) { goingProtected = p }

// hGoingBit: clearing is a "spared from destruction" affordance always
// permitted (notionally notifying the actor, handled by the caller);
// setting requires GOD and refuses the canonical fixtures.
func hGoingBit(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if !set {
		return hAny(target, actor, e, set, fixingReset)
	}
	if !actor.IsGod() {
		return fmt.Errorf("Permission denied.")
	}
	if !fixingReset {
		d := target.Dbref()
		p := goingProtected
		if d == p.Zero || d == p.GodDbref || d == p.StartHome || d == p.StartRoom || d == p.DefaultHome || d == p.MasterRoom {
			return fmt.Errorf("Permission denied.")
		}
	}
	return hAny(target, actor, e, set, fixingReset)
}

// MonitorBit identifies the bit/word pair for MONITOR so hHearBit can
// recognize it without a package-level import cycle on the roster.
var MonitorBit = struct {
	Word Word
	Bit  uint32
}{}

// SetMonitorBit configures the MONITOR bit location checked by hHearBit.
func SetMonitorBit(w Word, bit uint32) { MonitorBit.Word = w; MonitorBit.Bit = bit }

// EarNotifier is called by hHearBit when an object's hearability
// (Hearer(target) in the legacy design) changes as a result of the
// mutation.
type EarNotifier func(target Target, wasHearer, isHearer bool)

var earNotifier EarNotifier

// SetEarNotifier installs the object-ear subsystem callback.
func SetEarNotifier(fn EarNotifier) { earNotifier = fn }

// PendingBit names a flag mutation that has passed its permission check
// but has not yet been committed to the authoritative Set (Registry.Apply
// only writes the bit back after the handler returns). Passing one to
// HearerFunc lets the caller ask "would target be a hearer with this bit
// at this value", without the mutation having actually landed yet.
type PendingBit struct {
	Word Word
	Bit  uint32
	On   bool
}

// HearerFunc reports whether target is currently a "hearer" (PUPPET,
// MONITOR or HEARTHRU set) — supplied by the caller since only the
// object subsystem knows the full set. When pending is non-nil, the
// named bit is evaluated at its given value instead of whatever is
// presently stored.
type HearerFunc func(target Target, pending *PendingBit) bool

var hearerFunc HearerFunc

// SetHearerFunc installs the hearability predicate.
func SetHearerFunc(fn HearerFunc) { hearerFunc = fn }

func hHearBit(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if target.IsPlayer() && e.Word == MonitorBit.Word && e.Bit == MonitorBit.Bit {
		if !actor.CanMonitor() {
			return fmt.Errorf("Permission denied.")
		}
	}
	var wasHearer bool
	if hearerFunc != nil {
		wasHearer = hearerFunc(target, nil)
	}
	if err := hAny(target, actor, e, set, fixingReset); err != nil {
		return err
	}
	// Registry.Apply commits the bit to the Set only after this handler
	// returns, so ask hearerFunc what the post-mutation state would be
	// rather than re-querying target, which still reflects the old bit.
	if earNotifier != nil && hearerFunc != nil {
		pending := PendingBit{Word: e.Word, Bit: e.Bit, On: set}
		earNotifier(target, wasHearer, hearerFunc(target, &pending))
	}
	return nil
}

// hPlayerBit refuses if target is a player.
func hPlayerBit(target Target, actor Actor, e *Entry, set bool, fixingReset bool) error {
	if target.IsPlayer() {
		return fmt.Errorf("Permission denied.")
	}
	return hAny(target, actor, e, set, fixingReset)
}
