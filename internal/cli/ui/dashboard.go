package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"procpilot/pkg/sdk"
)

type serverRow struct {
	server  sdk.Server
	port    int
	metrics *sdk.MetricsSnapshot
}

type model struct {
	table     table.Model
	rows      []serverRow
	err       error
	width     int
	height    int
	isLoading bool
	message   string
	client    *sdk.Client
}

type serverDataMsg []serverRow
type errMsg error
type tickMsg time.Time
type clearMessageMsg struct{}

// RunDashboard blocks until the user quits or selects a server for the
// log view; the selected name is returned, empty on quit.
func RunDashboard(client *sdk.Client) string {
	columns := []table.Column{
		{Title: "Sts", Width: 3},
		{Title: "Name", Width: 20},
		{Title: "Kind", Width: 15},
		{Title: "Port", Width: 6},
		{Title: "CPU", Width: 8},
		{Title: "RAM", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := model{
		table:     t,
		isLoading: true,
		client:    client,
	}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	finalModel, err := program.Run()
	if err != nil {
		fmt.Printf("Error running dashboard: %v", err)
		os.Exit(1)
	}

	if m, ok := finalModel.(model); ok && m.message == "navigate_logs" {
		selectedRow := m.table.SelectedRow()
		if len(selectedRow) > 1 {
			return selectedRow[1]
		}
	}
	return ""
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		fetchDataCmd(m.client),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			if name, status := m.selected(); name != "" {
				if status == "running" {
					m.message = fmt.Sprintf("Server %s is already running", name)
				} else {
					go m.client.StartServer(name)
					m.message = fmt.Sprintf("Starting server %s...", name)
				}
				return m, clearMessageCmd()
			}
		case "x":
			if name, status := m.selected(); name != "" {
				if status != "running" {
					m.message = fmt.Sprintf("Server %s is not running", name)
				} else {
					go m.client.StopServer(name)
					m.message = fmt.Sprintf("Stopping server %s...", name)
				}
				return m, clearMessageCmd()
			}
		case "r":
			if name, _ := m.selected(); name != "" {
				go m.client.RestartServer(name)
				m.message = fmt.Sprintf("Restarting server %s...", name)
				return m, clearMessageCmd()
			}
		case "enter":
			m.message = "navigate_logs"
			return m, tea.Quit
		}
	case clearMessageMsg:
		m.message = ""
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 10)
		m.table.SetHeight(msg.Height - 10)
	case serverDataMsg:
		m.isLoading = false
		m.rows = msg
		m.updateTable()
		return m, nil
	case tickMsg:
		return m, tea.Batch(fetchDataCmd(m.client), tickCmd())
	case errMsg:
		m.err = msg
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) selected() (name, status string) {
	selectedRow := m.table.SelectedRow()
	if len(selectedRow) < 2 {
		return "", ""
	}
	name = selectedRow[1]
	for _, row := range m.rows {
		if row.server.Name == name {
			return name, row.server.Status
		}
	}
	return name, ""
}

func (m *model) updateTable() {
	rows := []table.Row{}
	for _, row := range m.rows {
		status := "🔴"
		if row.server.Status == "running" {
			status = "🟢"
		}

		port := "-"
		if row.port > 0 {
			port = fmt.Sprintf("%d", row.port)
		} else if row.server.Port > 0 {
			port = fmt.Sprintf("%d", row.server.Port)
		}

		cpu := "-"
		ram := "-"
		if row.metrics != nil && row.metrics.Running {
			cpu = fmt.Sprintf("%.1f%%", row.metrics.CPUPercent)
			ram = fmt.Sprintf("%.1f MB", row.metrics.MemoryMB)
		}

		rows = append(rows, table.Row{
			status,
			row.server.Name,
			row.server.Kind,
			port,
			cpu,
			ram,
		})
	}
	m.table.SetRows(rows)
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := headerStyle.Render("PROCPILOT")
	clock := subHeaderStyle.Render(time.Now().Format("Mon Jan 2 15:04:05"))

	hostInfo := fmt.Sprintf("Daemon: %s  |  Servers: %d", m.client.BaseURL(), len(m.rows))
	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, clock, " ", hostInfo))

	tableContainer := baseStyle.
		Width(m.width - 4).
		Height(m.height - 12).
		Render(m.table.View())

	statusLine := "↑/↓: navigate • s: start • x: stop • r: restart • enter: logs • q: quit"
	footerText := lipgloss.NewStyle().
		MarginLeft(2).
		Foreground(lipgloss.Color("240")).
		Render(statusLine)

	if m.message != "" && m.message != "navigate_logs" {
		footerText = fmt.Sprintf("%s\n%s", messageStyle.Render(m.message), footerText)
	}

	return lipgloss.JoinVertical(lipgloss.Center,
		headerBox,
		tableContainer,
		footerText,
	)
}

// The 1 second refresh doubles as the liveness reaper: listing servers
// makes the daemon reconcile processes that died on their own.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func clearMessageCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

func fetchDataCmd(client *sdk.Client) tea.Cmd {
	return func() tea.Msg {
		servers, err := client.ListServers()
		if err != nil {
			return errMsg(err)
		}

		rows := make([]serverRow, 0, len(servers))
		for _, server := range servers {
			row := serverRow{server: server}
			if server.Status == "running" {
				if status, err := client.GetServerStatus(server.Name); err == nil {
					row.port = status.Port
				}
				if snapshot, err := client.GetServerMetrics(server.Name); err == nil {
					row.metrics = snapshot
				}
			}
			rows = append(rows, row)
		}
		return serverDataMsg(rows)
	}
}
