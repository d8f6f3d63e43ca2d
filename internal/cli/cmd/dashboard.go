package cmd

import (
	"procpilot/internal/cli/ui"
)

func RunDashboard() {
	for {
		name := ui.RunDashboard(Client)
		if name == "" {
			break
		}
		back := ui.RunLogs(Client, name)
		if !back {
			break
		}
	}
}
