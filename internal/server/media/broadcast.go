// Package media implements the server's media fan-out (spec.md §4.G): a
// per-stream broadcast channel with bounded buffering and explicit lag
// notification, fed by a JPEG-framing producer and drained by any number
// of subscriber connections.
package media

import (
	"errors"
	"fmt"
	"sync"
)

// BroadcastCapacity is each stream's retained frame count (spec.md §4.G:
// "capacity 10 frames").
const BroadcastCapacity = 10

// Frame is one complete image handed to subscribers. A Frame is
// immutable once broadcast.
type Frame struct {
	Seq   uint64
	Bytes []byte
}

// ErrClosed is returned by Recv once a Broadcaster has been closed and
// fully drained.
var ErrClosed = errors.New("media: broadcast channel closed")

// LaggedError reports that a subscriber fell behind and skipped frames
// rather than being resent them (spec.md §4.G: "dropped frames are not
// resent").
type LaggedError struct{ Skipped uint64 }

func (e *LaggedError) Error() string {
	return fmt.Sprintf("media: subscriber lagged, skipped %d frames", e.Skipped)
}

// Broadcaster fans frames out to any number of subscribers. It is a
// fixed-capacity ring buffer: a send past capacity overwrites the oldest
// retained frame, and a subscriber that has fallen behind the oldest
// retained frame observes a LaggedError instead of replaying history.
type Broadcaster struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cap     int
	ring    []*Frame
	nextSeq uint64
	oldest  uint64
	closed  bool
}

func NewBroadcaster(capacity int) *Broadcaster {
	b := &Broadcaster{cap: capacity, ring: make([]*Frame, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send enqueues frame for delivery to every current and future
// subscriber. A Broadcaster with no subscribers still advances its
// sequence (spec.md §4.G: "if no subscriber is attached, the send is a
// no-op" — meaning no one observes it, not that the stream halts).
func (b *Broadcaster) Send(frame *Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	frame.Seq = b.nextSeq
	b.ring[int(b.nextSeq)%b.cap] = frame
	b.nextSeq++
	if b.nextSeq-b.oldest > uint64(b.cap) {
		b.oldest = b.nextSeq - uint64(b.cap)
	}
	b.cond.Broadcast()
}

// Close ends the broadcaster. Subscribers blocked in Recv wake with
// ErrClosed once they catch up to the last sent frame.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Subscriber tracks one consumer's read position in a Broadcaster.
type Subscriber struct {
	b    *Broadcaster
	next uint64
}

// Subscribe attaches a new consumer, which observes only frames sent
// from this point forward.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscriber{b: b, next: b.nextSeq}
}

// Recv blocks until a frame is available. It returns *LaggedError if
// frames were overwritten before this subscriber read them (the
// subscriber's position jumps to the oldest still-retained frame), or
// ErrClosed once the broadcaster has closed and every sent frame has been
// delivered.
func (s *Subscriber) Recv() (*Frame, error) {
	b := s.b
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if s.next < b.oldest {
			skipped := b.oldest - s.next
			s.next = b.oldest
			return nil, &LaggedError{Skipped: skipped}
		}
		if s.next < b.nextSeq {
			frame := b.ring[int(s.next)%b.cap]
			s.next++
			return frame, nil
		}
		if b.closed {
			return nil, ErrClosed
		}
		b.cond.Wait()
	}
}
