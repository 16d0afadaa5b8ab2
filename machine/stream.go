package machine

import (
	"net"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

// streamChunkSize is the read unit for the background stream thread
// (spec.md §4.I "reads fd in 4 KiB chunks").
const streamChunkSize = 4096

// startStreams opens one media connection per stream registered with a
// live file descriptor, announces it with a stream_descriptor, and spawns
// its pump goroutine (spec.md §4.I).
func (m *Machine) startStreams(mediaAddr string) error {
	m.mu.RLock()
	type entry struct {
		name string
		s    *Stream
	}
	var entries []entry
	for name, s := range m.streams {
		if s.File != nil {
			entries = append(entries, entry{name, s})
		}
	}
	machineName := m.name
	m.mu.RUnlock()

	for _, e := range entries {
		conn, err := net.Dial("tcp", mediaAddr)
		if err != nil {
			return fabricerr.New(fabricerr.ConnectionError, err)
		}
		w := wire.NewWriter(conn)
		descriptor := wire.New(-1, wire.StreamDescriptor{Machine: machineName, Stream: e.name})
		if err := w.WriteMessage(descriptor); err != nil {
			conn.Close()
			return fabricerr.New(fabricerr.MessageWriteError, err)
		}
		e.s.mediaConn = conn
		e.s.running.Store(true)
		m.wg.Add(1)
		go m.pumpStream(e.s)
	}
	return nil
}

// pumpStream reads File in streamChunkSize chunks and forwards each chunk
// to mediaConn until File hits EOF, a write fails, or running is cleared
// during shutdown.
func (m *Machine) pumpStream(s *Stream) {
	defer m.wg.Done()
	defer s.mediaConn.Close()

	buf := make([]byte, streamChunkSize)
	for s.running.Load() {
		n, err := s.File.Read(buf)
		if n > 0 {
			if _, werr := s.mediaConn.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
