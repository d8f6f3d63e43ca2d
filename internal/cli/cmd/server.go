package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"procpilot/internal/cli/ui"
	"procpilot/pkg/sdk"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage servers",
}

var addPath, addKind, addCommand, addArgs, addVenv string
var addPort int

var serverAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a new server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleAdd(args[0])
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all servers",
	Run: func(cmd *cobra.Command, args []string) {
		handleList()
	},
}

var serverStartCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleStart(args[0])
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Stop a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleStop(args[0])
	},
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart [name]",
	Short: "Restart a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleRestart(args[0])
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a server and its logs and metrics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleRemove(args[0])
	},
}

var logsLines int
var logsFollow bool

var serverLogsCmd = &cobra.Command{
	Use:   "logs [name]",
	Short: "View server logs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if logsFollow {
			ui.RunLogs(Client, args[0])
			return
		}
		handleLogs(args[0], logsLines)
	},
}

func init() {
	serverAddCmd.Flags().StringVar(&addPath, "path", "", "Path to the executable or project directory")
	serverAddCmd.Flags().StringVar(&addKind, "kind", "", "Server kind (nodejs, flask, scraper-source, scraper-binary)")
	serverAddCmd.Flags().StringVar(&addCommand, "command", "", "Interpreter or runtime override")
	serverAddCmd.Flags().StringVar(&addArgs, "args", "", "Extra command line arguments")
	serverAddCmd.Flags().StringVar(&addVenv, "venv", "", "Python virtualenv path")
	serverAddCmd.Flags().IntVar(&addPort, "port", 0, "Configured port")
	serverAddCmd.MarkFlagRequired("path")
	serverAddCmd.MarkFlagRequired("kind")

	serverLogsCmd.Flags().IntVar(&logsLines, "lines", 100, "Number of log lines to show")
	serverLogsCmd.Flags().BoolVar(&logsFollow, "follow", false, "Stream logs live")

	serverCmd.AddCommand(serverAddCmd, serverListCmd, serverStartCmd, serverStopCmd,
		serverRestartCmd, serverRemoveCmd, serverLogsCmd)
	RootCmd.AddCommand(serverCmd)
}

func handleAdd(name string) {
	req := sdk.Server{
		Name:     name,
		Path:     addPath,
		Kind:     addKind,
		Command:  addCommand,
		Args:     addArgs,
		Port:     addPort,
		VenvPath: addVenv,
	}

	if err := Client.CreateServer(req); err != nil {
		log.Fatalf("Error adding server: %v", err)
	}
	fmt.Printf("Server %s added.\n", name)
}

func handleList() {
	servers, err := Client.ListServers()
	if err != nil {
		log.Fatalf("Error listing servers: %v", err)
	}

	fmt.Println("Servers:")
	for _, s := range servers {
		port := ""
		if s.Port > 0 {
			port = fmt.Sprintf(" Port: %d", s.Port)
		}
		fmt.Printf("- %s (%s) [%s]%s\n", s.Name, s.Kind, s.Status, port)
	}
}

func handleStart(name string) {
	if err := Client.StartServer(name); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
	fmt.Println("Server started.")
}

func handleStop(name string) {
	if err := Client.StopServer(name); err != nil {
		log.Fatalf("Error stopping server: %v", err)
	}
	fmt.Println("Server stopped.")
}

func handleRestart(name string) {
	if err := Client.RestartServer(name); err != nil {
		log.Fatalf("Error restarting server: %v", err)
	}
	fmt.Println("Server restarted.")
}

func handleRemove(name string) {
	if err := Client.DeleteServer(name); err != nil {
		log.Fatalf("Error removing server: %v", err)
	}
	fmt.Println("Server removed.")
}

func handleLogs(name string, lines int) {
	entries, err := Client.GetServerLogs(name, lines)
	if err != nil {
		log.Fatalf("Error loading logs: %v", err)
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
}
