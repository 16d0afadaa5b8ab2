// Package admin exposes a read-only HTTP + WebSocket operator surface
// over the server's registries: JSON snapshots of connected machines and
// environments, and a live feed of registry-change events. It is not a
// protocol peer — it never originates function_call or any other wire
// variant — so it does not expand the fabric's trust surface (SPEC_FULL.md
// §6 supplement).
package admin

import (
	"sort"

	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/server/router"
	"github.com/robofabric/fabric/internal/wire"
)

// MachineSnapshot is one connected machine's admin-visible state: its
// full machine_description capability surface, the same map shapes the
// machine announced at registration, plus the stream names alone for
// callers (the dashboard) that only need the list.
type MachineSnapshot struct {
	Name      string                    `json:"name"`
	ID        string                    `json:"id"`
	Functions map[string]wire.Function  `json:"functions"`
	Sensors   map[string]wire.Sensor    `json:"sensors"`
	Axes      map[string]wire.Axis      `json:"axes"`
	Streams   []string                  `json:"streams"`
}

// RegistrySnapshot is the full point-in-time view pushed to /api/ws
// clients and read by the operator dashboard. GET /api/machines serves
// only its Machines list.
type RegistrySnapshot struct {
	Machines         []MachineSnapshot `json:"machines"`
	EnvironmentCount int                `json:"environment_count"`
	ReplyTableDepth  int                `json:"reply_table_depth"`
}

// Source is the subset of server state the admin surface reads. It never
// mutates the registries or the router.
type Source struct {
	Machines     *registry.Machines
	Environments *registry.Environments
	Router       *router.Router
}

func (s *Source) Snapshot() RegistrySnapshot {
	byName := s.Machines.Snapshot()
	machines := make([]MachineSnapshot, 0, len(byName))
	for name, peer := range byName {
		streams := make([]string, 0, len(peer.Streams))
		for stream := range peer.Streams {
			streams = append(streams, stream)
		}
		sort.Strings(streams)
		machines = append(machines, MachineSnapshot{
			Name:      name,
			ID:        peer.ID,
			Functions: peer.Functions,
			Sensors:   peer.Sensors,
			Axes:      peer.Axes,
			Streams:   streams,
		})
	}
	sort.Slice(machines, func(i, j int) bool { return machines[i].Name < machines[j].Name })
	return RegistrySnapshot{
		Machines:         machines,
		EnvironmentCount: s.Environments.Count(),
		ReplyTableDepth:  s.Router.ReplyTableLen(),
	}
}
