package machine

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/fabricerr"
	"github.com/robofabric/fabric/internal/wire"
)

// fakeServer accepts one control connection, expects a machine_description,
// and replies with the given setup_response.
func fakeServer(t *testing.T, respond wire.SetupResponse) (addr string, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done = make(chan struct{})
	go func() {
		defer close(done)
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := wire.NewReader(conn)
		writer := wire.NewWriter(conn)
		msg, err := reader.ReadMessage()
		if err != nil {
			return
		}
		if _, ok := msg.Inner.(wire.MachineDescription); !ok {
			return
		}
		_ = writer.WriteMessage(wire.New(msg.MessageID, respond))
	}()
	return ln.Addr().String(), done
}

func TestConnect_Accepted(t *testing.T) {
	addr, done := fakeServer(t, wire.SetupResponse{Connected: true})
	m := New()
	require.NoError(t, m.SetName("arm"))
	require.NoError(t, m.Connect(addr, addr))
	assert.Equal(t, Connected, m.State())
	<-done
}

func TestConnect_Rejected(t *testing.T) {
	addr, done := fakeServer(t, wire.SetupResponse{Connected: false, Reason: "duplicate name"})
	m := New()
	require.NoError(t, m.SetName("arm"))
	err := m.Connect(addr, addr)
	require.Error(t, err)
	assert.Equal(t, fabricerr.ConnectionRejected, fabricerr.KindOf(err))
	assert.Equal(t, Unconnected, m.State())
	<-done
}
