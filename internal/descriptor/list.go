package descriptor

import "sync"

// List is the process-wide set of live descriptors, replacing the
// legacy design's intrusive descriptor_list/descriptor_list_lock with
// a mutex-guarded map keyed by descriptor ID.
type List struct {
	mu    sync.RWMutex
	byID  map[string]*Descriptor
}

// NewList returns an empty descriptor list.
func NewList() *List {
	return &List{byID: make(map[string]*Descriptor)}
}

// Add registers d.
func (l *List) Add(d *Descriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[d.ID] = d
}

// Remove unregisters the descriptor with the given ID, if present.
func (l *List) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byID, id)
}

// Get looks up a descriptor by ID.
func (l *List) Get(id string) (*Descriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.byID[id]
	return d, ok
}

// Snapshot returns a stable copy of the currently registered
// descriptors, safe to range over without holding the list lock (the
// event loop's per-tick readiness scan does exactly this).
func (l *List) Snapshot() []*Descriptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Descriptor, 0, len(l.byID))
	for _, d := range l.byID {
		out = append(out, d)
	}
	return out
}

// Len reports the number of live descriptors.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

// ByPlayer finds the descriptor logged in as the given player object,
// if any (used by BOOT and page-delivery paths).
func (l *List) ByPlayer(player int) (*Descriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.byID {
		if d.Connected() && d.Player == player {
			return d, true
		}
	}
	return nil, false
}
