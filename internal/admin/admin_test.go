package admin

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/server/router"
	"github.com/robofabric/fabric/internal/wire"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()

	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	peer := registry.NewPeer(a, wire.RoleMachine, 16)
	peer.Streams = map[string]wire.Stream{"cam": {Format: "jpeg"}}
	machines.Add("arm", peer)

	return &Source{Machines: machines, Environments: environments, Router: router.New(machines, environments)}
}

func TestSource_Snapshot(t *testing.T) {
	src := newTestSource(t)
	snap := src.Snapshot()
	require.Len(t, snap.Machines, 1)
	assert.Equal(t, "arm", snap.Machines[0].Name)
	assert.Equal(t, []string{"cam"}, snap.Machines[0].Streams)
	assert.Equal(t, 0, snap.EnvironmentCount)
}

func TestServer_MachinesEndpoint(t *testing.T) {
	src := newTestSource(t)
	s := NewServer("127.0.0.1:0", src)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/machines")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []MachineSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "arm", got[0].Name)
}

func TestServer_StreamEndpointNotFound(t *testing.T) {
	src := newTestSource(t)
	s := NewServer("127.0.0.1:0", src)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/streams/arm/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHub_ServeWSSendsInitialSnapshot(t *testing.T) {
	src := newTestSource(t)
	s := NewServer("127.0.0.1:0", src)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
}
