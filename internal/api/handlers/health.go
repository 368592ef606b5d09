package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/irfndi/econ-trends/internal/services"
)

var startTime = time.Now()

// HealthChecker is implemented by database.PostgresDB and database.RedisClient.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
	probe services.SystemProbe
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]string        `json:"services"`
	System    *services.SystemSnapshot `json:"system,omitempty"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
}

// NewHealthHandler creates the handler. A nil redis means the result cache is
// disabled, which does not make the service unhealthy. probe may be nil.
func NewHealthHandler(db, redis HealthChecker, probe services.SystemProbe) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
		probe: probe,
	}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			statuses["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			statuses["database"] = "healthy"
		}
	} else {
		statuses["database"] = "unhealthy: not configured"
		healthy = false
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			statuses["redis"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			statuses["redis"] = "healthy"
		}
	} else {
		statuses["redis"] = "disabled"
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  statuses,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	}
	if !healthy {
		response.Status = "unhealthy"
	}
	if h.probe != nil {
		if snap, err := h.probe.Snapshot(ctx); err == nil {
			response.System = &snap
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Readiness check for Kubernetes-style deployments
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.db != nil && h.db.HealthCheck(r.Context()) == nil
	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":    ready,
		"services": map[string]string{"database": status},
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Liveness check for container restarts
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
