package router

import (
	"log"
	"net"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/wire"
)

// PeerQueueCapacity is the bounded per-connection send/receive queue depth
// (spec.md §4.E).
const PeerQueueCapacity = 16

// ServeMachineControl performs the machine handshake — the first frame
// must be machine_description, and the name must not collide with an
// already-connected machine (spec.md §4.E) — then, on success, spawns the
// connection's receive and send tasks.
func (r *Router) ServeMachineControl(conn net.Conn) {
	reader := wire.NewReader(conn)
	writer := wire.NewWriter(conn)

	first, err := reader.ReadMessage()
	if err != nil {
		log.Printf("router: machine control handshake read failed: %v", err)
		conn.Close()
		return
	}
	desc, ok := first.Inner.(wire.MachineDescription)
	if !ok {
		log.Printf("router: first frame on machine control was %s, not machine_description; dropping", first.Inner.Tag())
		conn.Close()
		return
	}

	peer := registry.NewPeer(conn, wire.RoleMachine, PeerQueueCapacity)
	peer.Functions = desc.Functions
	peer.Sensors = desc.Sensors
	peer.Axes = desc.Axes
	peer.Streams = desc.Streams
	if !r.machines.Add(desc.Name, peer) {
		log.Printf("router: machine name %q already connected; dropping new connection", desc.Name)
		_ = writer.WriteMessage(wire.New(first.MessageID, wire.SetupResponse{Connected: false, Reason: "name already connected"}))
		conn.Close()
		return
	}

	if err := writer.WriteMessage(wire.New(first.MessageID, wire.SetupResponse{Connected: true})); err != nil {
		log.Printf("router: failed to send setup_response to %q: %v", desc.Name, err)
		r.machines.RemoveByPeer(peer)
		conn.Close()
		return
	}

	r.runPeer(peer, reader, writer)
}

// ServeEnvironmentControl registers an environment connection. Environments
// carry no handshake of their own; they become routable as soon as the
// connection is accepted.
func (r *Router) ServeEnvironmentControl(conn net.Conn) {
	peer := registry.NewPeer(conn, wire.RoleEnvironment, PeerQueueCapacity)
	r.environments.Add(peer)
	r.runPeer(peer, wire.NewReader(conn), wire.NewWriter(conn))
}

func (r *Router) runPeer(peer *registry.Peer, reader *wire.Reader, writer *wire.Writer) {
	go r.sendTask(peer, writer)
	go r.receiveTask(peer, reader)
}

// receiveTask decodes messages and forwards (message, source) to the
// router until the connection errors, at which point it synthesizes a
// disconnect (spec.md §4.E).
func (r *Router) receiveTask(peer *registry.Peer, reader *wire.Reader) {
	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			r.Submit(wire.New(r.freshID(), wire.Disconnect{}), peer)
			return
		}
		r.Submit(msg, peer)
	}
}

// sendTask dequeues and writes messages; a broken-pipe write synthesizes a
// disconnect and exits (spec.md §4.E).
func (r *Router) sendTask(peer *registry.Peer, writer *wire.Writer) {
	for {
		select {
		case msg := <-peer.Send:
			if err := writer.WriteMessage(msg); err != nil {
				r.Submit(wire.New(r.freshID(), wire.Disconnect{}), peer)
				return
			}
		case <-peer.Done():
			return
		}
	}
}
