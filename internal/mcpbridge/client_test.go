package mcpbridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/wire"
)

func newTestClient(t *testing.T) (*Client, *wire.Reader, *wire.Writer) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	client := NewClient(a)
	return client, wire.NewReader(b), wire.NewWriter(b)
}

func TestClient_CallCorrelatesReplyByID(t *testing.T) {
	client, serverReader, serverWriter := newTestClient(t)

	done := make(chan wire.Message, 1)
	go func() {
		reply, err := client.Call(context.Background(), wire.SensorRead{Destination: "arm", Name: "temp"})
		require.NoError(t, err)
		done <- reply
	}()

	req, err := serverReader.ReadMessage()
	require.NoError(t, err)
	sr, ok := req.Inner.(wire.SensorRead)
	require.True(t, ok)
	assert.Equal(t, "arm", sr.Destination)

	require.NoError(t, serverWriter.WriteMessage(wire.New(req.MessageID, wire.SensorReturn{
		ReplyTo: req.MessageID,
		Value:   []byte("21.5"),
	})))

	select {
	case reply := <-done:
		sret, ok := reply.Inner.(wire.SensorReturn)
		require.True(t, ok)
		assert.Equal(t, []byte("21.5"), []byte(sret.Value))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated reply")
	}
}

func TestClient_AnswersUnsolicitedHeartbeat(t *testing.T) {
	client, serverReader, serverWriter := newTestClient(t)
	defer client.Close()

	require.NoError(t, serverWriter.WriteMessage(wire.New(1, wire.Heartbeat{IsReply: false})))

	reply, err := serverReader.ReadMessage()
	require.NoError(t, err)
	hb, ok := reply.Inner.(wire.Heartbeat)
	require.True(t, ok)
	assert.True(t, hb.IsReply)
}

func TestClient_CallReturnsErrorWhenContextCancelled(t *testing.T) {
	client, serverReader, _ := newTestClient(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, wire.MachineListRequest{})
		done <- err
	}()

	_, err := serverReader.ReadMessage()
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelled call to return")
	}
}

func TestClient_CallReturnsErrorWhenConnectionCloses(t *testing.T) {
	client, _, _ := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), wire.MachineListRequest{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	client.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for call to fail after close")
	}
}
