package api

import (
	"encoding/json"
	"net/http"
)

// healthResponse is the liveness payload. The bridge keeps no warm state
// worth probing beyond the listener itself.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Service: "intercept"}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
