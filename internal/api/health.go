package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports each registered dependency. Any failure turns the
// overall status to "degraded" and the response code to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Truncate(time.Second).String(),
	}
	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
	}
	for name, hc := range s.health {
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			resp.Components[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
