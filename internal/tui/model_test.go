package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robofabric/fabric/internal/admin"
	"github.com/robofabric/fabric/internal/server/registry"
	"github.com/robofabric/fabric/internal/server/router"
	"github.com/robofabric/fabric/internal/wire"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	machines := registry.NewMachines()
	environments := registry.NewEnvironments()
	r := router.New(machines, environments)
	source := &admin.Source{Machines: machines, Environments: environments, Router: r}
	return New(source)
}

func TestModel_InitSchedulesPollAndTick(t *testing.T) {
	m := newTestModel(t)
	cmd := m.Init()
	require.NotNil(t, cmd)
}

func TestModel_UpdateAppliesSnapshot(t *testing.T) {
	m := newTestModel(t)
	snap := admin.RegistrySnapshot{
		Machines: []admin.MachineSnapshot{
			{Name: "arm", Functions: map[string]wire.Function{"move": {}}},
			{Name: "gripper"},
		},
		EnvironmentCount: 2,
		ReplyTableDepth:  3,
	}

	updated, cmd := m.Update(snapshotMsg(snap))
	nm := updated.(*Model)
	assert.Nil(t, cmd)
	assert.Equal(t, 2, len(nm.list.Items()))
	assert.Equal(t, "arm", nm.list.Items()[0].(machineItem).Name)
	assert.Equal(t, 2, nm.environmentCount)
}

func TestModel_ArrowKeysMoveSelectionWithinBounds(t *testing.T) {
	m := newTestModel(t)
	snap := admin.RegistrySnapshot{Machines: []admin.MachineSnapshot{{Name: "a"}, {Name: "b"}}}
	updated, _ := m.Update(snapshotMsg(snap))
	m = updated.(*Model)
	m.list.SetSize(80, 20)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(*Model)
	assert.Equal(t, 1, m.list.Index())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(*Model)
	assert.Equal(t, 1, m.list.Index(), "selection must not overrun the machine list")
}

func TestModel_QuitKeyReturnsQuitCmd(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}

func TestModel_ViewRendersMachineNames(t *testing.T) {
	m := newTestModel(t)
	snap := admin.RegistrySnapshot{Machines: []admin.MachineSnapshot{{Name: "welder-1"}}}
	updated, _ := m.Update(snapshotMsg(snap))
	m = updated.(*Model)
	m.width, m.height = 80, 24
	m.list.SetSize(80, 20)

	out := m.View()
	assert.Contains(t, out, "welder-1")
	assert.Contains(t, out, "reply-table depth")
}
