package mcpbridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/admin"
	"github.com/robofabric/fabric/internal/wire"
)

func newTestMCPServer() *server.MCPServer {
	return server.NewMCPServer("fabric-mcp-bridge-test", "0.0.0")
}

func TestDiscoverOnce_RegistersOneToolPerFunction(t *testing.T) {
	machines := []admin.MachineSnapshot{
		{
			Name: "arm",
			Functions: map[string]wire.Function{
				"move_to": {Parameters: map[string]wire.TypeCode{"x": wire.TypeDouble, "y": wire.TypeDouble}},
				"grip":    {Parameters: map[string]wire.TypeCode{}},
			},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/machines", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(machines))
	}))
	defer srv.Close()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	bridge := &Bridge{
		client:       NewClient(a),
		admin:        srv.Client(),
		adminBaseURL: srv.URL,
		mcp:          nil,
		registered:   make(map[string]bool),
	}
	// This test does not go through New, so registerStaticTools is not
	// exercised here; discoverOnce only needs Bridge.mcp to accept AddTool,
	// so build a real one.
	bridge.mcp = newTestMCPServer()

	bridge.discoverOnce(context.Background())

	assert.True(t, bridge.registered["arm.move_to"])
	assert.True(t, bridge.registered["arm.grip"])
	assert.Len(t, bridge.registered, 2)

	// A second pass must not re-register already-known tools.
	bridge.discoverOnce(context.Background())
	assert.Len(t, bridge.registered, 2)
}
