package ui

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"procpilot/pkg/sdk"
)

type logModel struct {
	sub      chan string
	viewport viewport.Model
	err      error
	ready    bool
	name     string
	server   *sdk.Server
	content  string
	back     bool
	client   *sdk.Client
	width    int
	height   int
}

type logMsg string
type logErrMsg error
type serverDetailsMsg *sdk.Server

func waitForLog(sub chan string) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return nil
		}
		return logMsg(msg)
	}
}

func getServerDetails(client *sdk.Client, name string) tea.Cmd {
	return func() tea.Msg {
		srv, err := client.GetServer(name)
		if err != nil {
			return logErrMsg(err)
		}
		return serverDetailsMsg(srv)
	}
}

func (m logModel) Init() tea.Cmd {
	return tea.Batch(
		waitForLog(m.sub),
		getServerDetails(m.client, m.name),
		tickCmd(),
	)
}

func (m logModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var vpCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			m.back = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 10
		contentWidth := msg.Width - 6

		if !m.ready {
			m.viewport = viewport.New(contentWidth, msg.Height-headerHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.content)
			m.viewport.GotoBottom()
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = msg.Height - headerHeight
		}

	case logMsg:
		m.content += string(msg) + "\n"
		m.viewport.SetContent(m.content)
		m.viewport.GotoBottom()
		return m, waitForLog(m.sub)

	case serverDetailsMsg:
		m.server = msg

	case logErrMsg:
		m.err = msg
		return m, tea.Quit

	case tickMsg:
		return m, tea.Batch(getServerDetails(m.client, m.name), tickCmd())
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

func (m logModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := headerStyle.Width(m.width).Render("SERVER LOGS")

	serverInfo := "Loading server details..."
	if m.server != nil {
		statusColor := "160"
		statusIcon := "🔴"
		if m.server.Status == "running" {
			statusColor = "42"
			statusIcon = "🟢"
		}

		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor))

		port := "-"
		if m.server.Port > 0 {
			port = fmt.Sprintf("%d", m.server.Port)
		}
		serverInfo = fmt.Sprintf(
			"Server: %s %s  •  Kind: %s  •  Port: %s",
			statusIcon,
			statusStyle.Render(m.server.Name),
			m.server.Kind,
			port,
		)
	}

	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(serverInfo)

	console := baseStyle.
		Width(m.width - 4).
		Render(m.viewport.View())

	keys := []string{
		keyStyle.Render("esc") + descStyle.Render(": back"),
		keyStyle.Render("ctrl+c") + descStyle.Render(": quit"),
	}
	helpText := ""
	for i, k := range keys {
		helpText += k
		if i < len(keys)-1 {
			helpText += descStyle.Render(" • ")
		}
	}

	footerBox := footerStyle.
		Width(m.width - 4).
		Render(helpText)

	return lipgloss.JoinVertical(lipgloss.Center,
		title,
		headerBox,
		console,
		footerBox,
	)
}

// RunLogs streams a server's log events over WebSocket into a viewport.
// Returns true when the user wants back to the dashboard.
func RunLogs(client *sdk.Client, name string) bool {
	wsURL, err := client.GetWebSocketURL(fmt.Sprintf("/servers/%s/ws", name))
	if err != nil {
		log.Fatal("Error parsing base URL:", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error connecting to logs: %v\nPress Enter to continue...", err)
		fmt.Scanln()
		return true
	}
	defer conn.Close()

	sub := make(chan string)

	go func() {
		defer close(sub)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event struct {
				Line    string `json:"line"`
				IsError bool   `json:"is_error"`
			}
			if err := json.Unmarshal(message, &event); err != nil || event.Line == "" {
				continue
			}
			line := event.Line
			if event.IsError {
				line = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Render(line)
			}
			sub <- line
		}
	}()

	m := logModel{
		sub:    sub,
		name:   name,
		client: client,
	}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	finalModel, err := program.Run()
	if err != nil {
		fmt.Printf("Error running log view: %v", err)
		os.Exit(1)
	}

	if m, ok := finalModel.(logModel); ok {
		return m.back
	}
	return false
}
