package api

import (
	"encoding/json"
	"net/http"

	"procpilot/internal/domain"
)

func (api *Server) handleListStacks(w http.ResponseWriter, r *http.Request) {
	stacks, err := api.Manager.ListStacks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stacks)
}

func (api *Server) handleCreateStack(w http.ResponseWriter, r *http.Request) {
	var stack domain.Stack
	if err := json.NewDecoder(r.Body).Decode(&stack); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := api.Manager.CreateStack(stack); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, stack)
}

func (api *Server) handleGetStack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	stack, err := api.Manager.GetStack(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stack == nil {
		http.Error(w, "Stack not found", http.StatusNotFound)
		return
	}
	writeJSON(w, stack)
}

func (api *Server) handleUpdateStack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	var req struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := api.Manager.UpdateStack(name, req.Members); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (api *Server) handleDeleteStack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	if err := api.Manager.DeleteStack(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *Server) handleStartStack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	results, err := api.Manager.StartStack(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, results)
}

func (api *Server) handleStopStack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	results, err := api.Manager.StopStack(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, results)
}

func (api *Server) handleStackStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "Missing stack name", http.StatusBadRequest)
		return
	}

	status, err := api.Manager.StackStatus(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": status})
}
