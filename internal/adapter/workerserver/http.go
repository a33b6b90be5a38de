package workerserver

import (
	"encoding/json"
	"io"
	"net/http"

	"food-router/internal/domain"
)

// Worker HTTP paths; they mirror the orchestrator's HTTP transport.
const (
	tasksPath  = "/v1/tasks"
	cardPath   = "/.well-known/agent.json"
	healthPath = "/healthz"

	maxRequestBytes = 1 << 20
)

// tasksHandler serves POST /v1/tasks. Business failures are 200 replies
// with status "error"; undecodable requests are 400 replies in the same
// shape; internal faults are 500.
func tasksHandler(exec domain.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.WireRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, domain.WireResponse{
				Status: domain.StatusError,
				Error:  "invalid request body: " + err.Error(),
			})
			return
		}

		resp, err := exec.Execute(r.Context(), req)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cardHandler(exec domain.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, exec.Card())
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
