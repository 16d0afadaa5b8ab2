package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMachineControlPort, cfg.GetMachineControlPort())
	assert.Equal(t, time.Second, cfg.GetHeartbeatInterval())
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fabricd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`heartbeat_seconds = 5`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.GetHeartbeatInterval())
	assert.Equal(t, DefaultMachineControlPort, cfg.GetMachineControlPort())
}

func TestStore_ReplaceAppliesLiveFieldsAndKeepsRestartFields(t *testing.T) {
	initial, err := Load("")
	require.NoError(t, err)
	store := NewStore(initial)

	five := 5
	eight := 8888
	next := &ServerConfig{HeartbeatSeconds: &five, MachineControlPort: &eight}

	var restarted []string
	store.Replace(next, func(field string) { restarted = append(restarted, field) })

	current := store.Current()
	assert.Equal(t, 5*time.Second, current.GetHeartbeatInterval())
	assert.Equal(t, DefaultMachineControlPort, current.GetMachineControlPort(), "port changes must not apply live")
	assert.Contains(t, restarted, "machine_control_port")
	assert.NotContains(t, restarted, "environment_control_port")
}

func TestWatchFile_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabricd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`heartbeat_seconds = 1`), 0644))

	initial, err := Load(path)
	require.NoError(t, err)
	store := NewStore(initial)

	w, err := WatchFile(path, store)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`heartbeat_seconds = 3`), 0644))

	require.Eventually(t, func() bool {
		return store.Current().GetHeartbeatInterval() == 3*time.Second
	}, 2*time.Second, 20*time.Millisecond)
}
