package registry

import "sync"

// Machines is the server's table of connected machines, keyed by the name
// each announced in its machine_description. Readers and writers use a
// read/write lock; no I/O happens while the lock is held (spec.md §5).
type Machines struct {
	mu     sync.RWMutex
	byName map[string]*Peer
}

func NewMachines() *Machines {
	return &Machines{byName: make(map[string]*Peer)}
}

// Add registers name -> peer, refusing a duplicate name (spec.md §4.E:
// "On name collision the new connection is dropped, existing machine
// kept").
func (m *Machines) Add(name string, peer *Peer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[name]; exists {
		return false
	}
	peer.Name = name
	m.byName[name] = peer
	return true
}

// Get looks up a machine by name.
func (m *Machines) Get(name string) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[name]
	return p, ok
}

// RemoveByPeer removes peer if it is still the registered occupant of its
// name (a later connection may already have replaced it under a different
// name binding, though same-name replacement is refused by Add).
func (m *Machines) RemoveByPeer(peer *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.byName[peer.Name]; ok && current == peer {
		delete(m.byName, peer.Name)
	}
}

// Names returns a snapshot of connected machine names, for
// machine_list_reply (spec.md §4.E).
func (m *Machines) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	return names
}

// Snapshot returns a copy of the name -> peer table, for the admin surface.
func (m *Machines) Snapshot() map[string]*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Peer, len(m.byName))
	for k, v := range m.byName {
		out[k] = v
	}
	return out
}

// Environments is the set of connected environment peers. Environments are
// not individually named on the wire; they are tracked by connection
// identity alone.
type Environments struct {
	mu  sync.RWMutex
	set map[*Peer]struct{}
}

func NewEnvironments() *Environments {
	return &Environments{set: make(map[*Peer]struct{})}
}

func (e *Environments) Add(peer *Peer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set[peer] = struct{}{}
}

func (e *Environments) Remove(peer *Peer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.set, peer)
}

// Each calls fn for a snapshot of currently-connected environment peers.
func (e *Environments) Each(fn func(*Peer)) {
	e.mu.RLock()
	peers := make([]*Peer, 0, len(e.set))
	for p := range e.set {
		peers = append(peers, p)
	}
	e.mu.RUnlock()
	for _, p := range peers {
		fn(p)
	}
}

// Count reports the number of connected environments, for admin snapshots.
func (e *Environments) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.set)
}

// ReplyTable correlates a forwarded message's id with the peer awaiting
// its reply. It is owned entirely by the router goroutine and needs no
// lock (spec.md §5).
type ReplyTable struct {
	entries map[int64]*Peer
}

func NewReplyTable() *ReplyTable {
	return &ReplyTable{entries: make(map[int64]*Peer)}
}

// Insert records that a reply addressed to id should be routed to source.
// A duplicate id overwrites the previous entry (spec.md §4.E step 4).
func (t *ReplyTable) Insert(id int64, source *Peer) {
	t.entries[id] = source
}

// Take removes and returns the peer awaiting id's reply, if any.
func (t *ReplyTable) Take(id int64) (*Peer, bool) {
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return p, ok
}

// SweepSource removes every entry awaiting a reply at source, bounding the
// table's growth when source disconnects (spec.md §9 resolved Open
// Question 1).
func (t *ReplyTable) SweepSource(source *Peer) {
	for id, p := range t.entries {
		if p == source {
			delete(t.entries, id)
		}
	}
}

// Len reports the number of outstanding reply-table entries, for admin
// snapshots.
func (t *ReplyTable) Len() int {
	return len(t.entries)
}
