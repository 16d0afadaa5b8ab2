package media

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"net"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/wire"
)

func readDescriptor(br *bufio.Reader) (wire.StreamDescriptor, error) {
	line, err := br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return wire.StreamDescriptor{}, err
	}
	var msg wire.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return wire.StreamDescriptor{}, err
	}
	sd, ok := msg.Inner.(wire.StreamDescriptor)
	if !ok {
		return wire.StreamDescriptor{}, errUnexpectedVariant(msg.Inner.Tag())
	}
	return sd, nil
}

type unexpectedVariantError string

func (e unexpectedVariantError) Error() string { return "unexpected first frame: " + string(e) }

func errUnexpectedVariant(tag string) error { return unexpectedVariantError(tag) }

// ServeMachineMedia handles a connection accepted on the machine media
// listener: its first frame must be stream_descriptor naming an already
// machine_description-registered stream of a known format, after which
// it claims that stream's broadcast slot and runs the JPEG frame producer
// until the connection ends (spec.md §4.G).
func ServeMachineMedia(conn net.Conn, machines *registry.Machines, slots *Registry) {
	br := bufio.NewReader(conn)
	sd, err := readDescriptor(br)
	if err != nil {
		log.Printf("media: machine media handshake failed: %v", err)
		conn.Close()
		return
	}

	peer, ok := machines.Get(sd.Machine)
	if !ok {
		log.Printf("media: machine %q not connected, dropping media connection", sd.Machine)
		conn.Close()
		return
	}
	stream, ok := peer.Streams[sd.Stream]
	if !ok {
		log.Printf("media: machine %q has no stream %q, dropping media connection", sd.Machine, sd.Stream)
		conn.Close()
		return
	}
	if stream.Format != "jpeg" && stream.Format != "mjpeg" {
		log.Printf("media: stream %q/%q has unsupported format %q, dropping", sd.Machine, sd.Stream, stream.Format)
		conn.Close()
		return
	}

	slot := slots.Claim(sd.Machine, sd.Stream, stream.Format)
	defer slots.Release(sd.Machine, sd.Stream, slot)
	defer conn.Close()
	runProducer(br, slot.Broadcaster, sd.Machine, sd.Stream)
}

func runProducer(br *bufio.Reader, b *Broadcaster, machine, stream string) {
	defer b.Close()
	jr := newJPEGReader(br)
	count := 0
	for {
		frame, err := jr.Next()
		if err != nil {
			if err != io.EOF {
				log.Printf("media: %s/%s producer error: %v", machine, stream, err)
			}
			return
		}
		count++
		b.Send(&Frame{Bytes: frame})
		if count%100 == 0 {
			log.Printf("media: %s/%s produced %d frames", machine, stream, count)
		}
	}
}

// ServeEnvironmentMedia handles a connection accepted on the environment
// media listener: its first frame must be stream_descriptor naming a
// currently-claimed stream, after which raw frame bytes are written
// back-to-back on the wire until the broadcaster closes or the write
// fails (spec.md §4.G).
func ServeEnvironmentMedia(conn net.Conn, slots *Registry) {
	defer conn.Close()
	br := bufio.NewReader(conn)
	sd, err := readDescriptor(br)
	if err != nil {
		log.Printf("media: environment media handshake failed: %v", err)
		return
	}

	slot, ok := slots.Lookup(sd.Machine, sd.Stream)
	if !ok {
		log.Printf("media: no active stream %s/%s, dropping subscriber", sd.Machine, sd.Stream)
		return
	}

	sub := slot.Broadcaster.Subscribe()
	for {
		frame, err := sub.Recv()
		if err != nil {
			if lagged, ok := err.(*LaggedError); ok {
				log.Printf("media: subscriber to %s/%s lagged, skipped %d frames", sd.Machine, sd.Stream, lagged.Skipped)
				continue
			}
			return
		}
		if _, err := conn.Write(frame.Bytes); err != nil {
			return
		}
	}
}
