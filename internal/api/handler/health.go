package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/flight-support/internal/api/response"
)

// Pinger reports the health of each backing store by name
type Pinger interface {
	Ping(ctx context.Context) map[string]error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including store connectivity
func ReadyCheck(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		ready := true
		for name, err := range p.Ping(r.Context()) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			response.Error(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not ready",
				"checks": checks,
			})
			return
		}

		response.OK(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}
