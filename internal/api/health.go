package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tjhsst/ion-verifier/internal/models/entities"
)

// Pinger is implemented by stores with an external backend (Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckHandler handles GET /healthCheck
//
// Reports process uptime and, when the pending store has an external
// backend, its reachability. pinger may be nil for the in-memory store.
func HealthCheckHandler(pinger Pinger, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		services := make(map[string]entities.ServiceStatus)

		if pinger != nil {
			status := "ok"
			details := "Redis connected"
			if err := pinger.Ping(r.Context()); err != nil {
				status = "down"
				details = err.Error()
			}
			services["redis"] = entities.ServiceStatus{
				Status:  status,
				Details: details,
			}
		}

		overallStatus := "ok"
		for _, svc := range services {
			if svc.Status != "ok" {
				overallStatus = "down"
				break
			}
		}

		uptime := time.Since(upSince).Round(time.Second).String()

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   overallStatus,
			Uptime:   uptime,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
