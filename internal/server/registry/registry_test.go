package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/wire"
)

func newTestPeer(t *testing.T, role wire.Role) *Peer {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return NewPeer(a, role, 16)
}

func TestMachines_AddRejectsDuplicateName(t *testing.T) {
	m := NewMachines()
	first := newTestPeer(t, wire.RoleMachine)
	second := newTestPeer(t, wire.RoleMachine)

	assert.True(t, m.Add("arm", first))
	assert.False(t, m.Add("arm", second))

	got, ok := m.Get("arm")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestMachines_RemoveByPeerOnlyRemovesCurrentOccupant(t *testing.T) {
	m := NewMachines()
	first := newTestPeer(t, wire.RoleMachine)
	require.True(t, m.Add("arm", first))

	m.RemoveByPeer(first)
	_, ok := m.Get("arm")
	assert.False(t, ok)

	// Re-adding under the same name installs a new occupant; removing the
	// stale first peer again must not disturb it.
	second := newTestPeer(t, wire.RoleMachine)
	require.True(t, m.Add("arm", second))
	m.RemoveByPeer(first)
	got, ok := m.Get("arm")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestMachines_NamesAndSnapshot(t *testing.T) {
	m := NewMachines()
	require.True(t, m.Add("arm", newTestPeer(t, wire.RoleMachine)))
	require.True(t, m.Add("leg", newTestPeer(t, wire.RoleMachine)))

	assert.ElementsMatch(t, []string{"arm", "leg"}, m.Names())
	snap := m.Snapshot()
	assert.Len(t, snap, 2)
	assert.Contains(t, snap, "arm")
	assert.Contains(t, snap, "leg")
}

func TestEnvironments_AddRemoveEachCount(t *testing.T) {
	e := NewEnvironments()
	p1 := newTestPeer(t, wire.RoleEnvironment)
	p2 := newTestPeer(t, wire.RoleEnvironment)

	e.Add(p1)
	e.Add(p2)
	assert.Equal(t, 2, e.Count())

	var seen []*Peer
	e.Each(func(p *Peer) { seen = append(seen, p) })
	assert.ElementsMatch(t, []*Peer{p1, p2}, seen)

	e.Remove(p1)
	assert.Equal(t, 1, e.Count())
	seen = nil
	e.Each(func(p *Peer) { seen = append(seen, p) })
	assert.Equal(t, []*Peer{p2}, seen)
}

func TestReplyTable_InsertTakeOverwritesAndLen(t *testing.T) {
	rt := NewReplyTable()
	a := newTestPeer(t, wire.RoleEnvironment)
	b := newTestPeer(t, wire.RoleEnvironment)

	rt.Insert(1, a)
	assert.Equal(t, 1, rt.Len())

	// A duplicate id overwrites the previous entry.
	rt.Insert(1, b)
	assert.Equal(t, 1, rt.Len())

	got, ok := rt.Take(1)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 0, rt.Len())

	_, ok = rt.Take(1)
	assert.False(t, ok)
}

func TestReplyTable_SweepSourceRemovesOnlyThatSourcesEntries(t *testing.T) {
	rt := NewReplyTable()
	a := newTestPeer(t, wire.RoleEnvironment)
	b := newTestPeer(t, wire.RoleEnvironment)

	rt.Insert(1, a)
	rt.Insert(2, b)
	rt.Insert(3, a)

	rt.SweepSource(a)
	assert.Equal(t, 1, rt.Len())

	got, ok := rt.Take(2)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestPeer_CloseIsIdempotentAndNeverClosesSend(t *testing.T) {
	p := newTestPeer(t, wire.RoleMachine)

	p.Close()
	select {
	case <-p.Done():
	default:
		t.Fatal("expected Done to be closed")
	}

	// Closing twice must not panic.
	require.NotPanics(t, func() { p.Close() })

	// Send is never closed, so an unreceived value just sits there.
	select {
	case p.Send <- wire.New(1, wire.Heartbeat{}):
	default:
		t.Fatal("expected Send to accept a value")
	}
}
