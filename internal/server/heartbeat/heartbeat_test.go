package heartbeat

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/wire"
)

func newTestPeer(t *testing.T, role wire.Role, queueCapacity int) *registry.Peer {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return registry.NewPeer(a, role, queueCapacity)
}

func TestMonitor_TickSendsHeartbeatToEachPeer(t *testing.T) {
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	arm := newTestPeer(t, wire.RoleMachine, 1)
	machines.Add("arm", arm)
	env := newTestPeer(t, wire.RoleEnvironment, 1)
	environments.Add(env)

	m := New(machines, environments)
	m.tick()

	for _, peer := range []*registry.Peer{arm, env} {
		select {
		case got := <-peer.Send:
			hb, ok := got.Inner.(wire.Heartbeat)
			require.True(t, ok)
			assert.False(t, hb.IsReply)
		default:
			t.Fatal("expected heartbeat enqueued")
		}
	}
}

func TestMonitor_TickSkipsClosedPeerWithoutBlocking(t *testing.T) {
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	arm := newTestPeer(t, wire.RoleMachine, 1)
	machines.Add("arm", arm)
	arm.Close()

	m := New(machines, environments)
	m.tick()

	select {
	case <-arm.Send:
		t.Fatal("expected no heartbeat enqueued for a closed peer")
	default:
	}
}

func TestMonitor_TickSkipsFullQueueWithoutBlocking(t *testing.T) {
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	arm := newTestPeer(t, wire.RoleMachine, 1)
	machines.Add("arm", arm)
	arm.Send <- wire.New(0, wire.Heartbeat{})

	m := New(machines, environments)
	done := make(chan struct{})
	go func() {
		m.tick()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick must not block on a full peer queue")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	arm := newTestPeer(t, wire.RoleMachine, 4)
	machines.Add("arm", arm)

	m := New(machines, environments)
	m.interval = 10 * time.Millisecond
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		select {
		case <-arm.Send:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	m.Stop()
}
