package health

import (
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Checker handles health check endpoints
type Checker struct {
	manifestPath  string
	dataModelPath string
	version       string
	startTime     time.Time
	ready         atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(manifestPath, dataModelPath, version string) *Checker {
	return &Checker{
		manifestPath:  manifestPath,
		dataModelPath: dataModelPath,
		version:       version,
		startTime:     time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health returns the overall health status. A missing manifest only
// degrades the service; an unusable data-model directory makes it unhealthy.
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	if _, err := os.Stat(c.manifestPath); err != nil {
		status.Status = "degraded"
		status.Checks["dbt_manifest"] = &CheckResult{
			Status:  "missing",
			Message: "no dbt project configured (run `dbt compile`)",
		}
	} else {
		status.Checks["dbt_manifest"] = &CheckResult{Status: "healthy"}
	}

	dir := filepath.Dir(c.dataModelPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		status.Status = "unhealthy"
		message := "data model directory does not exist"
		if err != nil {
			message = err.Error()
		}
		status.Checks["data_model"] = &CheckResult{Status: "unhealthy", Message: message}
	} else {
		status.Checks["data_model"] = &CheckResult{Status: "healthy"}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
