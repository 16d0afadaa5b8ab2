package media

import "sync"

// Slot is one machine stream's claimed broadcast channel (spec.md §3:
// "per-stream broadcaster slot ... filled when the machine opens the
// media connection").
type Slot struct {
	Format      string
	Broadcaster *Broadcaster
}

// Registry tracks claimed stream slots, keyed by machine name and stream
// name.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]map[string]*Slot
}

func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]map[string]*Slot)}
}

// Claim installs a fresh broadcaster for machine/stream, replacing any
// prior claim — a machine that reconnects re-opens its media connection
// and starts a new broadcaster, so stale subscribers see the old one
// close rather than silently keep reading.
func (r *Registry) Claim(machine, stream, format string) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStream, ok := r.slots[machine]
	if !ok {
		byStream = make(map[string]*Slot)
		r.slots[machine] = byStream
	}
	if prior, ok := byStream[stream]; ok {
		prior.Broadcaster.Close()
	}
	slot := &Slot{Format: format, Broadcaster: NewBroadcaster(BroadcastCapacity)}
	byStream[stream] = slot
	return slot
}

// Lookup returns the currently-claimed slot for machine/stream, if any.
func (r *Registry) Lookup(machine, stream string) (*Slot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byStream, ok := r.slots[machine]
	if !ok {
		return nil, false
	}
	slot, ok := byStream[stream]
	return slot, ok
}

// Release clears a slot if it is still the one passed in — called once
// its producer connection ends.
func (r *Registry) Release(machine, stream string, slot *Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byStream, ok := r.slots[machine]; ok {
		if current, ok := byStream[stream]; ok && current == slot {
			delete(byStream, stream)
		}
	}
}
