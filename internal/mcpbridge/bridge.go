package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/robofabric/fabric/internal/admin"
)

// Version is stamped into the MCP server's initialize response, matching
// cmd/brum/main.go's build-time Version var.
var Version = "dev"

// DiscoveryInterval is how often RunDiscovery polls the admin surface for
// newly-registered machine functions.
const DiscoveryInterval = 5 * time.Second

// Bridge owns one fabric control connection and the mcp-go server whose
// tool set it keeps in sync with the fabric's currently-connected
// machines (SPEC_FULL.md §6: "<machine>.<function>" tools plus
// machines_list/sensor_read/axis_change).
type Bridge struct {
	client       *Client
	admin        *http.Client
	adminBaseURL string
	mcp          *server.MCPServer

	mu         sync.Mutex
	registered map[string]bool
}

// New dials fabricAddr as an environment peer, points at adminBaseURL
// (internal/admin's HTTP surface) for capability discovery, and registers
// the three static tools.
func New(fabricAddr, adminBaseURL string) (*Bridge, error) {
	client, err := Dial(fabricAddr)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		client:       client,
		admin:        &http.Client{Timeout: 5 * time.Second},
		adminBaseURL: adminBaseURL,
		mcp:          server.NewMCPServer("fabric-mcp-bridge", Version, server.WithToolCapabilities(true)),
		registered:   make(map[string]bool),
	}
	b.registerStaticTools()
	return b, nil
}

func (b *Bridge) registerStaticTools() {
	b.mcp.AddTool(mcplib.NewTool("machines_list",
		mcplib.WithDescription("List the names of machines currently connected to the fabric")),
		b.machinesListHandler)

	b.mcp.AddTool(mcplib.NewTool("sensor_read",
		mcplib.WithDescription("Read a named sensor on a connected machine"),
		mcplib.WithString("machine", mcplib.Required(), mcplib.Description("target machine name")),
		mcplib.WithString("name", mcplib.Required(), mcplib.Description("sensor name"))),
		b.sensorReadHandler)

	b.mcp.AddTool(mcplib.NewTool("axis_change",
		mcplib.WithDescription("Write a new value to a named axis on a connected machine"),
		mcplib.WithString("machine", mcplib.Required(), mcplib.Description("target machine name")),
		mcplib.WithString("name", mcplib.Required(), mcplib.Description("axis name")),
		mcplib.WithNumber("value", mcplib.Required(), mcplib.Description("new axis value"))),
		b.axisChangeHandler)
}

// Serve blocks, running the MCP server over stdio (cmd/fabric-mcp-bridge's
// entrypoint), mirroring cmd/brum/main.go's server.ServeStdio(hubMCPServer).
func (b *Bridge) Serve() error {
	return server.ServeStdio(b.mcp)
}

// Close releases the fabric control connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}

// RunDiscovery polls the admin surface every DiscoveryInterval until ctx
// is cancelled, registering a tool for each function the fabric hasn't
// exposed yet. It never removes a tool for a machine that disconnects —
// mcp-go has no tool-removal call in this version. The server's router
// drops a function_call for an unknown destination machine without
// replying, so a stale tool's call returns only when its context ends.
func (b *Bridge) RunDiscovery(ctx context.Context) {
	b.discoverOnce(ctx)
	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.discoverOnce(ctx)
		}
	}
}

func (b *Bridge) discoverOnce(ctx context.Context) {
	machines, err := b.fetchMachines(ctx)
	if err != nil {
		log.Printf("mcpbridge: capability discovery failed: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range machines {
		for function, fn := range m.Functions {
			toolName := m.Name + "." + function
			if b.registered[toolName] {
				continue
			}
			b.mcp.AddTool(
				mcplib.NewTool(toolName, functionToolOptions(fmt.Sprintf("Call %s on machine %s", function, m.Name), fn.Parameters)...),
				b.functionCallHandler(m.Name, function, fn.Parameters),
			)
			b.registered[toolName] = true
			log.Printf("mcpbridge: registered tool %s", toolName)
		}
	}
}

func (b *Bridge) fetchMachines(ctx context.Context) ([]admin.MachineSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.adminBaseURL+"/api/machines", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.admin.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /api/machines: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /api/machines: status %d", resp.StatusCode)
	}
	var machines []admin.MachineSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&machines); err != nil {
		return nil, fmt.Errorf("decode /api/machines: %w", err)
	}
	return machines, nil
}
