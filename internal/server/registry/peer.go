// Package registry holds the server's two connection tables (machines,
// environments) and the reply table the router uses to correlate
// forwarded calls with their eventual replies (spec.md §3, §4.E).
package registry

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/robofabric/fabric/internal/wire"
)

// Peer is one live connection: either a named machine or an anonymous
// environment. ID is an internal-only identifier (never serialized as a
// wire message_id) used for admin-surface bookkeeping.
type Peer struct {
	ID        string
	Role      wire.Role
	Name      string
	Conn      net.Conn
	Send      chan wire.Message
	Functions map[string]wire.Function
	Sensors   map[string]wire.Sensor
	Axes      map[string]wire.Axis
	Streams   map[string]wire.Stream

	closeOnce sync.Once
	done      chan struct{}
}

// NewPeer allocates a Peer with a send queue of the given capacity
// (spec.md §4.E: 16 per connection).
func NewPeer(conn net.Conn, role wire.Role, queueCapacity int) *Peer {
	return &Peer{
		ID:   uuid.NewString(),
		Role: role,
		Conn: conn,
		Send: make(chan wire.Message, queueCapacity),
		done: make(chan struct{}),
	}
}

// Done is closed when the peer is torn down; the router's forwarding path
// selects on it so a send to a closed destination fails instead of
// blocking forever (spec.md §4.E step 5).
func (p *Peer) Done() <-chan struct{} { return p.done }

// Close tears the peer down exactly once: closes its connection and
// signals Done. The Send channel itself is deliberately never closed —
// sends always race against Done instead, so a concurrent router send
// never panics on a closed channel.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.Conn.Close()
	})
}
