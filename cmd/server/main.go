package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"procpilot/internal/api"
	"procpilot/internal/app"
	"procpilot/internal/config"
	"procpilot/internal/events"
	"procpilot/internal/logstore"
	"procpilot/internal/metrics"
	"procpilot/internal/server"
	"procpilot/internal/storage"
	"procpilot/internal/ws"
)

const logHubHistory = 500

func main() {
	fmt.Println("Starting procpilot daemon...")

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("Error getting user config directory: %v", err)
	}
	configDir := filepath.Join(userConfigDir, "procpilot")

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	fmt.Printf("Using database: %s\n", cfg.DatabasePath)
	fmt.Printf("Using logs directory: %s\n", cfg.LogsPath)
	fmt.Printf("Using metrics directory: %s\n", cfg.MetricsPath)

	store, err := storage.NewGormStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Fatal: Could not connect to DB: %v", err)
	}

	logs, err := logstore.NewStore(cfg.LogsPath)
	if err != nil {
		log.Fatalf("Fatal: Could not create log store: %v", err)
	}
	metricsStore, err := metrics.NewStore(cfg.MetricsPath)
	if err != nil {
		log.Fatalf("Fatal: Could not create metrics store: %v", err)
	}

	bus := events.NewBus()
	manager := server.NewManager(store, logs, metricsStore, bus)
	monitor := server.NewMonitor(manager)
	hubManager := ws.NewHubManager(logHubHistory)
	bridge := ws.NewBridge(bus, hubManager)

	container := &app.Container{
		Store:      store,
		Logs:       logs,
		Metrics:    metricsStore,
		Bus:        bus,
		Manager:    manager,
		Monitor:    monitor,
		HubManager: hubManager,
	}

	monitor.Start()

	apiServer := api.NewAPIServer(container)
	listenAddr := fmt.Sprintf(":%d", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start(listenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("API Error: %v", err)
	case sig := <-sigCh:
		fmt.Printf("Received %s, shutting down...\n", sig)
	}

	monitor.Stop()
	manager.StopAll()
	bridge.Stop()
	bus.Close()
	hubManager.StopAll()
}
