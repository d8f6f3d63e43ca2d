package app

import (
	"procpilot/internal/events"
	"procpilot/internal/logstore"
	"procpilot/internal/metrics"
	"procpilot/internal/server"
	"procpilot/internal/storage"
	"procpilot/internal/ws"
)

type Container struct {
	Store      *storage.GormStore
	Logs       *logstore.Store
	Metrics    *metrics.Store
	Bus        *events.Bus
	Manager    *server.Manager
	Monitor    *server.Monitor
	HubManager *ws.HubManager
}
