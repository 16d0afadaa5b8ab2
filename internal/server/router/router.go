// Package router implements the server's router core (spec.md §4.E): a
// single goroutine that owns the reply table and decides, for every
// inbound message, whether it is a reply, an addressed call, or a
// server-local operation.
package router

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/wire"
)

// incomingCapacity is the router's central channel capacity (spec.md
// §4.E).
const incomingCapacity = 128

type routed struct {
	msg    wire.Message
	source *registry.Peer
}

// Router is the single-goroutine routing core. Machines/Environments are
// read under their own locks; the reply table is unshared router state.
type Router struct {
	machines     *registry.Machines
	environments *registry.Environments
	replies      *registry.ReplyTable
	incoming     chan routed
	nextID       atomic.Int64
}

func New(machines *registry.Machines, environments *registry.Environments) *Router {
	return &Router{
		machines:     machines,
		environments: environments,
		replies:      registry.NewReplyTable(),
		incoming:     make(chan routed, incomingCapacity),
	}
}

// Submit enqueues (msg, source) for routing. Receive and send tasks call
// this; it may suspend if the router's incoming channel is full (spec.md
// §5).
func (r *Router) Submit(msg wire.Message, source *registry.Peer) {
	r.incoming <- routed{msg: msg, source: source}
}

// Run drives the router until ctx is cancelled. A panic while routing a
// message is fatal to the whole process (spec.md §4.H: "the router task
// panicking is fatal").
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-r.incoming:
			r.route(item.msg, item.source)
		}
	}
}

// ReplyTableLen reports outstanding reply-table depth, for admin
// snapshots.
func (r *Router) ReplyTableLen() int { return r.replies.Len() }

func (r *Router) route(msg wire.Message, source *registry.Peer) {
	// Step 1: reply path. reply_to always wins over destination_machine
	// (spec.md §4.E "Tie-breaks").
	if id, ok := msg.ReplyTo(); ok {
		dest, found := r.replies.Take(id)
		if !found {
			log.Printf("router: reply_to %d has no waiting source, dropping %s", id, msg.Inner.Tag())
			return
		}
		r.enqueue(dest, msg)
		return
	}

	// Step 2: addressed path.
	if name, ok := msg.DestinationMachine(); ok {
		dest, found := r.machines.Get(name)
		if !found {
			log.Printf("router: unknown destination machine %q, dropping %s", name, msg.Inner.Tag())
			return
		}
		// Step 4: pre-forward bookkeeping.
		if msg.ExpectsForwardedReply() {
			r.replies.Insert(msg.MessageID, source)
		}
		// Step 5: forwarding.
		r.enqueue(dest, msg)
		return
	}

	// Step 3: server-local.
	r.handleLocal(msg, source)
}

func (r *Router) handleLocal(msg wire.Message, source *registry.Peer) {
	switch inner := msg.Inner.(type) {
	case wire.Disconnect:
		r.removeSource(source)
	case wire.Heartbeat:
		if !inner.IsReply {
			r.enqueue(source, wire.New(r.freshID(), wire.Heartbeat{IsReply: true}))
		}
	case wire.MachineListRequest:
		r.enqueue(source, wire.New(r.freshID(), wire.MachineListReply{Machines: r.machines.Names()}))
	case wire.MachineDescription, wire.StreamDescriptor:
		log.Printf("router: unexpected %s after registration, dropping", msg.Inner.Tag())
	default:
		log.Printf("router: no server-local handling for %s, dropping", msg.Inner.Tag())
	}
}

func (r *Router) removeSource(source *registry.Peer) {
	switch source.Role {
	case wire.RoleMachine:
		r.machines.RemoveByPeer(source)
	case wire.RoleEnvironment:
		r.environments.Remove(source)
	}
	r.replies.SweepSource(source)
	source.Close()
}

// enqueue hands msg to dest's send queue, blocking until the send task
// drains it (backpressure) or dest tears down (spec.md §4.E step 5).
func (r *Router) enqueue(dest *registry.Peer, msg wire.Message) {
	select {
	case dest.Send <- msg:
	case <-dest.Done():
		log.Printf("router: destination closed, dropping %s", msg.Inner.Tag())
	}
}

func (r *Router) freshID() int64 {
	return r.nextID.Add(1)
}
