// Package config loads fabricd's TOML configuration (ports, queue
// capacities, heartbeat period, media buffering, admin bind address, lock
// file path) and, optionally, watches the file and reloads it into a
// Store. fabricd reads the ports, admin bind address and lock file path
// once at startup, so a change to them takes effect only after a restart.
// The queue-capacity, heartbeat and media fields are parsed, defaulted and
// reloaded, but no server component reads them.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Default listener ports, per spec.md §6 "Defaults observed in source".
const (
	DefaultMachineControlPort     = 45575
	DefaultEnvironmentControlPort = 45576
	DefaultMachineMediaPort       = 45577
	DefaultEnvironmentMediaPort   = 45578
)

const (
	defaultHeartbeatSeconds    = 1
	defaultPeerQueueCapacity   = 16
	defaultRouterQueueCapacity = 128
	defaultMediaBroadcastCap   = 10
	defaultMediaBufferKiB      = 16
	defaultAdminAddr           = "127.0.0.1:8090"
	defaultLockPath            = "fabricd.lock"
)

// ServerConfig is the on-disk shape: every field is optional so a user's
// TOML file can override only what it names. Get*() accessors apply
// defaults, mirroring the teacher's `internal/config`
// pointer-field-with-accessor idiom.
type ServerConfig struct {
	MachineControlPort     *int    `toml:"machine_control_port"`
	EnvironmentControlPort *int    `toml:"environment_control_port"`
	MachineMediaPort       *int    `toml:"machine_media_port"`
	EnvironmentMediaPort   *int    `toml:"environment_media_port"`
	HeartbeatSeconds       *int    `toml:"heartbeat_seconds"`
	PeerQueueCapacity      *int    `toml:"peer_queue_capacity"`
	RouterQueueCapacity    *int    `toml:"router_queue_capacity"`
	MediaBroadcastCapacity *int    `toml:"media_broadcast_capacity"`
	MediaBufferKiB         *int    `toml:"media_buffer_kib"`
	AdminAddr              *string `toml:"admin_addr"`
	LockPath               *string `toml:"lock_path"`
}

func (c *ServerConfig) GetMachineControlPort() int {
	return intOr(c.MachineControlPort, DefaultMachineControlPort)
}

func (c *ServerConfig) GetEnvironmentControlPort() int {
	return intOr(c.EnvironmentControlPort, DefaultEnvironmentControlPort)
}

func (c *ServerConfig) GetMachineMediaPort() int {
	return intOr(c.MachineMediaPort, DefaultMachineMediaPort)
}

func (c *ServerConfig) GetEnvironmentMediaPort() int {
	return intOr(c.EnvironmentMediaPort, DefaultEnvironmentMediaPort)
}

func (c *ServerConfig) GetHeartbeatInterval() time.Duration {
	return time.Duration(intOr(c.HeartbeatSeconds, defaultHeartbeatSeconds)) * time.Second
}

func (c *ServerConfig) GetPeerQueueCapacity() int {
	return intOr(c.PeerQueueCapacity, defaultPeerQueueCapacity)
}

func (c *ServerConfig) GetRouterQueueCapacity() int {
	return intOr(c.RouterQueueCapacity, defaultRouterQueueCapacity)
}

func (c *ServerConfig) GetMediaBroadcastCapacity() int {
	return intOr(c.MediaBroadcastCapacity, defaultMediaBroadcastCap)
}

func (c *ServerConfig) GetMediaBufferBytes() int {
	return intOr(c.MediaBufferKiB, defaultMediaBufferKiB) * 1024
}

func (c *ServerConfig) GetAdminAddr() string {
	return stringOr(c.AdminAddr, defaultAdminAddr)
}

func (c *ServerConfig) GetLockPath() string {
	return stringOr(c.LockPath, defaultLockPath)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// Load reads path and parses it as TOML. A missing path returns an
// all-defaults ServerConfig rather than an error, so fabricd can run
// without a config file.
func Load(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Store holds the live, hot-reloadable configuration behind a mutex so
// readers never observe a partially-updated struct.
type Store struct {
	mu  sync.RWMutex
	cfg *ServerConfig
}

func NewStore(initial *ServerConfig) *Store {
	return &Store{cfg: initial}
}

// Current returns the presently-active configuration.
func (s *Store) Current() *ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a newly-loaded configuration. The four listener ports
// and the admin bind address require a fresh listener and therefore a
// restart; Replace keeps their previous values and reports each changed
// one via onRestartRequired instead of silently adopting it (spec.md
// AMBIENT STACK: "admin bind address requires restart and is logged as
// such").
func (s *Store) Replace(next *ServerConfig, onRestartRequired func(field string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg

	restartFields := map[string]bool{
		"admin_addr":               prev.GetAdminAddr() != next.GetAdminAddr(),
		"machine_control_port":     prev.GetMachineControlPort() != next.GetMachineControlPort(),
		"environment_control_port": prev.GetEnvironmentControlPort() != next.GetEnvironmentControlPort(),
		"machine_media_port":       prev.GetMachineMediaPort() != next.GetMachineMediaPort(),
		"environment_media_port":   prev.GetEnvironmentMediaPort() != next.GetEnvironmentMediaPort(),
	}
	for field, changed := range restartFields {
		if changed {
			onRestartRequired(field)
		}
	}
	next.AdminAddr = prev.AdminAddr
	next.MachineControlPort = prev.MachineControlPort
	next.EnvironmentControlPort = prev.EnvironmentControlPort
	next.MachineMediaPort = prev.MachineMediaPort
	next.EnvironmentMediaPort = prev.EnvironmentMediaPort

	s.cfg = next
}
