package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"procpilot/internal/app"
	"procpilot/internal/logstore"
	"procpilot/internal/server"
	"procpilot/internal/storage"
	"procpilot/internal/ws"
)

type Server struct {
	Manager    *server.Manager
	Store      *storage.GormStore
	Logs       *logstore.Store
	HubManager *ws.HubManager
}

func NewAPIServer(container *app.Container) *Server {
	return &Server{
		Manager:    container.Manager,
		Store:      container.Store,
		Logs:       container.Logs,
		HubManager: container.HubManager,
	}
}

func (api *Server) Start(listenAddr string) error {
	handler := api.corsMiddleware(api.Routes())

	fmt.Printf("API listening on http://0.0.0.0%s\n", listenAddr)
	return http.ListenAndServe(listenAddr, handler)
}

func (api *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /servers", api.handleListServers)
	mux.HandleFunc("POST /servers", api.handleCreateServer)
	mux.HandleFunc("GET /servers/{name}", api.handleGetServer)
	mux.HandleFunc("PUT /servers/{name}", api.handleUpdateServer)
	mux.HandleFunc("DELETE /servers/{name}", api.handleDeleteServer)

	mux.HandleFunc("POST /servers/{name}/start", api.handleStartServer)
	mux.HandleFunc("POST /servers/{name}/stop", api.handleStopServer)
	mux.HandleFunc("POST /servers/{name}/restart", api.handleRestartServer)
	mux.HandleFunc("GET /servers/{name}/status", api.handleServerStatus)

	mux.HandleFunc("GET /servers/{name}/logs", api.handleGetLogs)
	mux.HandleFunc("DELETE /servers/{name}/logs", api.handleClearLogs)

	mux.HandleFunc("GET /servers/{name}/metrics", api.handleGetMetrics)
	mux.HandleFunc("GET /servers/{name}/metrics/history", api.handleMetricsHistory)

	mux.HandleFunc("GET /stacks", api.handleListStacks)
	mux.HandleFunc("POST /stacks", api.handleCreateStack)
	mux.HandleFunc("GET /stacks/{name}", api.handleGetStack)
	mux.HandleFunc("PUT /stacks/{name}", api.handleUpdateStack)
	mux.HandleFunc("DELETE /stacks/{name}", api.handleDeleteStack)
	mux.HandleFunc("POST /stacks/{name}/start", api.handleStartStack)
	mux.HandleFunc("POST /stacks/{name}/stop", api.handleStopStack)
	mux.HandleFunc("GET /stacks/{name}/status", api.handleStackStatus)

	mux.HandleFunc("GET /settings", api.handleGetSettings)
	mux.HandleFunc("PUT /settings", api.handleSetSettings)

	mux.HandleFunc("GET /servers/{name}/ws", api.handleServerWs)
	mux.HandleFunc("GET /events/ws", api.handleEventsWs)

	return mux
}

func (api *Server) handleServerWs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	hub := api.HubManager.GetHub(name)
	hub.ServeWs(w, r)
}

func (api *Server) handleEventsWs(w http.ResponseWriter, r *http.Request) {
	hub := api.HubManager.GetHub(ws.EventHubName)
	hub.ServeWs(w, r)
}

func (api *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
