package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"procpilot/internal/domain"
)

func (api *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := api.Manager.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, servers)
}

func (api *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := api.Manager.Add(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := api.Manager.Get(cfg.Name)
	if err != nil || created == nil {
		http.Error(w, "Server created but could not be read back", http.StatusInternalServerError)
		return
	}
	writeJSON(w, created)
}

func (api *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	cfg, err := api.Manager.Get(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}
	writeJSON(w, cfg)
}

func (api *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	var upd domain.ServerUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := api.Manager.Update(name, upd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (api *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	if err := api.Manager.Remove(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	api.HubManager.RemoveHub(name)

	w.WriteHeader(http.StatusNoContent)
}

func (api *Server) handleStartServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	if err := api.Manager.Start(name); err != nil {
		http.Error(w, fmt.Sprintf("Error starting: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "started"})
}

func (api *Server) handleStopServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	api.Manager.Stop(name)
	writeJSON(w, map[string]string{"status": "stopped"})
}

func (api *Server) handleRestartServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	if err := api.Manager.Restart(name); err != nil {
		http.Error(w, fmt.Sprintf("Error restarting: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "started"})
}

func (api *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"status": api.Manager.Status(name),
	}
	if port := api.Manager.Port(name); port > 0 {
		response["port"] = port
	}
	writeJSON(w, response)
}

func (api *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	lines := 0
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid lines parameter", http.StatusBadRequest)
			return
		}
		lines = parsed
	}

	entries := api.Logs.Load(name, lines)
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, entries)
}

func (api *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	api.Logs.Clear(name)
	api.HubManager.GetHub(name).ClearHistory()

	w.WriteHeader(http.StatusNoContent)
}

func (api *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	snapshot, ok := api.Manager.Metrics(name)
	running := ok
	if !ok && api.Manager.Status(name) == domain.StatusRunning {
		// Suppressed read: the server is alive, serve the last reported
		// snapshot instead of zeros.
		snapshot, _ = api.Manager.LastMetrics(name)
		running = true
	}
	writeJSON(w, map[string]interface{}{
		"running":     running,
		"cpu_percent": snapshot.CPUPercent,
		"memory_mb":   snapshot.MemoryMB,
	})
}

func (api *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing server name", http.StatusBadRequest)
		return
	}

	rangeSeconds := 3600.0
	if raw := r.URL.Query().Get("range"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid range parameter", http.StatusBadRequest)
			return
		}
		rangeSeconds = parsed
	}

	samples := api.Manager.History(name, rangeSeconds)
	if samples == nil {
		samples = []domain.MetricSample{}
	}
	writeJSON(w, samples)
}
