package depositfile

import "net/http"

// handleHealth reports liveness for load balancer / orchestrator probes.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
