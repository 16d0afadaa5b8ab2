// Package heartbeat implements the server's heartbeat monitor (spec.md
// §4.F): a ticker-driven task that periodically offers every connected
// peer a keepalive, relying on the peer's own send task to detect a dead
// connection via a broken-pipe write error.
package heartbeat

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/wire"
)

// Interval is the monitor's wake period (spec.md §4.F: 1 s).
const Interval = 1 * time.Second

// Monitor periodically offers heartbeat{is_reply:false} to every
// connected machine and environment.
type Monitor struct {
	machines     *registry.Machines
	environments *registry.Environments
	interval     time.Duration
	nextID       atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Monitor with the default 1 s interval.
func New(machines *registry.Machines, environments *registry.Environments) *Monitor {
	return &Monitor{
		machines:     machines,
		environments: environments,
		interval:     Interval,
	}
}

// Start begins the monitor loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop cancels the monitor loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	for name, peer := range m.machines.Snapshot() {
		m.offer(peer, name)
	}
	m.environments.Each(func(peer *registry.Peer) {
		m.offer(peer, peer.ID)
	})
}

// offer attempts a non-blocking heartbeat send. A peer that has already
// torn down is skipped (its send task already synthesized a disconnect);
// a peer whose queue is momentarily full is skipped and logged, per
// spec.md §4.F.
func (m *Monitor) offer(peer *registry.Peer, label string) {
	select {
	case <-peer.Done():
		log.Printf("heartbeat: %s already disconnected, skipping", label)
		return
	default:
	}

	msg := wire.New(m.nextID.Add(1), wire.Heartbeat{IsReply: false})
	select {
	case peer.Send <- msg:
	default:
		log.Printf("heartbeat: %s queue full, skipping this tick", label)
	}
}
