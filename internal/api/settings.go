package api

import (
	"encoding/json"
	"net/http"
)

func (api *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := api.Store.ListSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, settings)
}

func (api *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for key, value := range req {
		if err := api.Store.SetSetting(key, value); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "updated"})
}
