package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything the service depends on that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks      map[string]Pinger
	version     string
	environment string
}

type HealthResponse struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Version     string                   `json:"version"`
	Uptime      string                   `json:"uptime"`
	Environment string                   `json:"environment"`
	Services    map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time,omitempty"`
	Error        string        `json:"error,omitempty"`
	LastCheck    time.Time     `json:"last_check"`
}

type ReadinessResponse struct {
	Ready    bool                     `json:"ready"`
	Services map[string]ServiceHealth `json:"services"`
}

type LivenessResponse struct {
	Alive bool `json:"alive"`
}

var startTime = time.Now()

// NewHealthHandler checks every dependency in checks, keyed by display name.
func NewHealthHandler(checks map[string]Pinger, version, environment string) *HealthHandler {
	return &HealthHandler{
		checks:      checks,
		version:     version,
		environment: environment,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	services, healthy := h.runChecks(ctx)

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, &HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		Uptime:      time.Since(startTime).Round(time.Second).String(),
		Environment: h.environment,
		Services:    services,
	})
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services, ready := h.runChecks(ctx)

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, &ReadinessResponse{Ready: ready, Services: services})
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &LivenessResponse{Alive: true})
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]ServiceHealth, bool) {
	services := make(map[string]ServiceHealth, len(h.checks))
	healthy := true

	for name, p := range h.checks {
		start := time.Now()
		err := p.Ping(ctx)

		result := ServiceHealth{
			Status:       "healthy",
			ResponseTime: time.Since(start),
			LastCheck:    time.Now().UTC(),
		}
		if err != nil {
			result.Status = "unhealthy"
			result.Error = err.Error()
			healthy = false
		}
		services[name] = result
	}

	return services, healthy
}
