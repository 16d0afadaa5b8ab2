// Package mcpbridge exposes the fabric's machines as Model Context
// Protocol tools. It holds a single environment-role connection to the
// server's control port and translates each MCP tools/call into the
// matching function_call/sensor_read/axis_change wire message, returning
// once the server routes back the correlated reply (SPEC_FULL.md §6
// domain stack, "github.com/mark3labs/mcp-go").
package mcpbridge

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/robofabric/fabric/internal/wire"
)

// Client is one environment connection to a fabric server's control port.
// Unlike the server's own registry.Peer (which never closes Send and
// races every send against Done), Client has exactly one reader and
// serializes writers behind writeMu, since wire.Writer forbids concurrent
// use and an MCP server fields tool calls from multiple goroutines at
// once.
type Client struct {
	conn   net.Conn
	reader *wire.Reader
	writer *wire.Writer

	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan wire.Message
	closed  chan struct{}
	closeOnce sync.Once
}

// Dial connects to a fabric server's control port as an environment peer
// and starts the background reply-correlation loop.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial fabric control port %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an already-established connection, letting tests drive
// it over a net.Pipe.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		reader:  wire.NewReader(conn),
		writer:  wire.NewWriter(conn),
		pending: make(map[int64]chan wire.Message),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close tears down the connection and fails every outstanding call.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
	return nil
}

// Call sends inner under a freshly allocated message id and blocks until
// the server routes back the matching reply_to, ctx is cancelled, or the
// connection is lost.
func (c *Client) Call(ctx context.Context, inner wire.Inner) (wire.Message, error) {
	id := c.nextID.Add(1)
	replyCh := make(chan wire.Message, 1)

	c.mu.Lock()
	c.pending[id] = replyCh
	c.mu.Unlock()

	if err := c.write(wire.New(id, inner)); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wire.Message{}, err
	}

	select {
	case msg := <-replyCh:
		return msg, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wire.Message{}, ctx.Err()
	case <-c.closed:
		return wire.Message{}, fmt.Errorf("fabric control connection closed")
	}
}

func (c *Client) write(msg wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteMessage(msg)
}

// readLoop dispatches every reply to its waiting Call and answers
// unsolicited heartbeats the way machine.Machine.dispatch does, so the
// server's heartbeat monitor never sees this peer as unresponsive.
func (c *Client) readLoop() {
	defer close(c.closed)

	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			return
		}

		if id, ok := msg.ReplyTo(); ok {
			c.mu.Lock()
			ch, found := c.pending[id]
			delete(c.pending, id)
			c.mu.Unlock()
			if found {
				ch <- msg
			} else {
				log.Printf("mcpbridge: reply_to %d matched no pending call, dropping %s", id, msg.Inner.Tag())
			}
			continue
		}

		switch inner := msg.Inner.(type) {
		case wire.Heartbeat:
			if !inner.IsReply {
				if err := c.write(wire.New(c.nextID.Add(1), wire.Heartbeat{IsReply: true})); err != nil {
					return
				}
			}
		default:
			log.Printf("mcpbridge: unsolicited %s from server, ignoring", msg.Inner.Tag())
		}
	}
}
