package main

import (
	"procpilot/internal/cli/cmd"
	"procpilot/internal/config"
)

func main() {
	cmd.Execute(config.DefaultPort)
}
