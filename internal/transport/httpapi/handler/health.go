package handler

import (
	"context"
	"net/http"
	"time"
)

// ServiceName identifies this service in health responses
const ServiceName = "hazelnut-api"

// DatabasePinger defines the interface for checking database connectivity
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db DatabasePinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db DatabasePinger) *HealthHandler {
	return &HealthHandler{
		db: db,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// GetHealth handles GET /health
// Basic health check - returns 200 OK if service is running
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

// GetHealthDetailed handles GET /health/detailed
// Detailed health check - includes database connectivity
func (h *HealthHandler) GetHealthDetailed(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "ok"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks["database"] = "healthy"
	}

	checks["api"] = "healthy"

	httpStatus := http.StatusOK
	if status == "degraded" {
		httpStatus = http.StatusServiceUnavailable
	}

	respondWithJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Checks:    checks,
	})
}

// GetReadiness handles GET /health/ready
// Readiness probe - checks if service is ready to accept traffic
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetLiveness handles GET /health/live
// Liveness probe - checks if service is alive
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
