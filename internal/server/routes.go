package server

import (
	"encoding/json"
	"net/http"

	"github.com/tidyhost/turnsync/internal/common"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Intake routes. Both always answer 200 to well-formed requests so
	// upstream senders never retry-storm; see the handlers for details.
	mux.HandleFunc("/webhooks/service", requireMethod(http.MethodPost, s.app.WebhookHandler.HandleEvent))
	mux.HandleFunc("/webhooks/email", requireMethod(http.MethodPost, s.app.EmailHandler.HandleEmail))

	// Observability routes.
	mux.HandleFunc("/api/status", requireMethod(http.MethodGet, s.app.StatusHandler.GetStatus))
	mux.HandleFunc("/api/runs", requireMethod(http.MethodGet, s.app.StatusHandler.GetRuns))
	mux.HandleFunc("/api/version", requireMethod(http.MethodGet, s.versionHandler))
	mux.HandleFunc("/api/health", requireMethod(http.MethodGet, s.healthHandler))

	// 404 handler for unmatched API routes.
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
}
