package api

import (
	"net/http"

	"github.com/cuemby/launcher/pkg/metrics"
)

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	metrics.HealthHandler()(w, r)
}

// readyHandler implements the /ready endpoint. The registry is probed on
// every call; the other components report their own health.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Registry.ListClusters(); err != nil {
		metrics.UpdateComponent(metrics.ComponentRegistry, false, err.Error())
	} else {
		metrics.UpdateComponent(metrics.ComponentRegistry, true, "")
	}

	metrics.ReadyHandler()(w, r)
}
