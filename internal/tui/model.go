// Package tui implements fabricd's optional operator dashboard
// (SPEC_FULL.md DOMAIN STACK, `--tui` flag): a live, read-only view of
// connected machines, their capability surfaces, and the reply-table
// depth the router is currently tracking. It never mutates server state —
// the same non-interference guarantee internal/admin's HTTP surface
// makes — it only polls admin.Source on a tick, the same periodic-refresh
// shape the teacher's Model uses for its own tickCmd/waitForUpdates loop.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/robofabric/fabric/internal/admin"
)

const tickInterval = time.Second

type tickMsg time.Time

type snapshotMsg admin.RegistrySnapshot

// machineItem adapts an admin.MachineSnapshot into a bubbles/list.Item,
// the same Title/Description/FilterValue shape the teacher's
// mcpConnectionItem uses for its own live connection list.
type machineItem admin.MachineSnapshot

func (i machineItem) Title() string { return i.Name }

func (i machineItem) Description() string {
	return fmt.Sprintf("functions=%d sensors=%d axes=%d streams=%d",
		len(i.Functions), len(i.Sensors), len(i.Axes), len(i.Streams))
}

func (i machineItem) FilterValue() string { return i.Name }

// Model is fabricd's dashboard: a single always-visible view (unlike the
// teacher's tabbed Model, there is exactly one thing an operator needs to
// watch here), refreshed once per tick.
type Model struct {
	source *admin.Source
	list   list.Model

	width, height    int
	environmentCount int
	replyTableDepth  int
}

// New builds a dashboard Model reading from source. source is read-only
// from the TUI's perspective; it is the same admin.Source fabricd's HTTP
// surface serves from.
func New(source *admin.Source) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "machines"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	return &Model{source: source, list: l}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) poll() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(m.source.Snapshot())
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(maxInt(m.width-4, 20), maxInt(m.height-10, 5))
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Unfiltered {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}
		}

	case tickMsg:
		return m, tea.Batch(m.poll(), tickCmd())

	case snapshotMsg:
		snap := admin.RegistrySnapshot(msg)
		sort.Slice(snap.Machines, func(i, j int) bool {
			return snap.Machines[i].Name < snap.Machines[j].Name
		})
		m.environmentCount = snap.EnvironmentCount
		m.replyTableDepth = snap.ReplyTableDepth
		items := make([]list.Item, len(snap.Machines))
		for i, mach := range snap.Machines {
			items[i] = machineItem(mach)
		}
		return m, m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fabricd — operator dashboard"))
	b.WriteString("\n\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("fabric"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  environments connected: %d\n", m.environmentCount))
	b.WriteString(fmt.Sprintf("  reply-table depth:      %d\n", m.replyTableDepth))

	if it, ok := m.list.SelectedItem().(machineItem); ok {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(admin.MachineSnapshot(it)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select · / filter · q quit"))

	return boxStyle.Width(maxInt(m.width-4, 40)).Render(b.String())
}

func (m *Model) renderDetail(mach admin.MachineSnapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s capabilities", mach.Name)))
	b.WriteString("\n")

	writeNames := func(label string, names []string) {
		b.WriteString(fmt.Sprintf("  %-10s", label))
		if len(names) == 0 {
			b.WriteString(dimStyle.Render("(none)"))
		} else {
			sort.Strings(names)
			b.WriteString(strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	functions := make([]string, 0, len(mach.Functions))
	for name := range mach.Functions {
		functions = append(functions, name)
	}
	sensors := make([]string, 0, len(mach.Sensors))
	for name := range mach.Sensors {
		sensors = append(sensors, name)
	}
	axes := make([]string, 0, len(mach.Axes))
	for name := range mach.Axes {
		axes = append(axes, name)
	}

	writeNames("functions", functions)
	writeNames("sensors", sensors)
	writeNames("axes", axes)
	writeNames("streams", mach.Streams)

	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
