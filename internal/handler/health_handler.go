// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escpos-service/internal/config"
	"escpos-service/internal/database"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// HealthHandler handles health check requests. db and migrator are nil
// when jobs are kept in memory.
type HealthHandler struct {
	db         *database.DB
	migrator   *database.Migrator
	jobService *service.JobService
	websocket  *WebSocketHandler
	config     *config.Config
	startedAt  time.Time
	logger     *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	db *database.DB,
	migrator *database.Migrator,
	jobService *service.JobService,
	websocket *WebSocketHandler,
	config *config.Config,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		db:         db,
		migrator:   migrator,
		jobService: jobService,
		websocket:  websocket,
		config:     config,
		startedAt:  time.Now(),
		logger:     utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/db", h.DatabaseHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including storage and capture sources
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			health.Status = "unhealthy"
			health.Checks["database"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			health.Checks["database"] = CheckResult{
				Status:  "healthy",
				Message: "Database connection OK",
				Data:    h.db.GetStats(),
			}
		}
	} else {
		health.Checks["storage"] = CheckResult{Status: "healthy", Message: "In-memory job history"}
	}

	if h.migrator != nil {
		version, dirty, err := h.migrator.Version()
		switch {
		case err != nil:
			health.Checks["migrations"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		case dirty:
			health.Status = "unhealthy"
			health.Checks["migrations"] = CheckResult{
				Status:  "unhealthy",
				Message: "Schema is dirty",
				Data:    map[string]interface{}{"version": version},
			}
		default:
			health.Checks["migrations"] = CheckResult{
				Status: "healthy",
				Data:   map[string]interface{}{"version": version},
			}
		}
	}

	for _, status := range h.jobService.CaptureStatus() {
		check := CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"connections":  status.Stats.Connections,
				"jobs_emitted": status.Stats.JobsEmitted,
				"bytes_read":   status.Stats.BytesRead,
				"errors":       status.Stats.ErrorCount,
			},
		}
		if !status.Stats.Listening {
			check.Status = "unhealthy"
			check.Message = "Not listening"
			health.Status = "unhealthy"
		}
		health.Checks["capture:"+status.Source] = check
	}

	stats := h.jobService.Stats()
	health.Checks["jobs"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"captured": stats.JobsCaptured,
			"imported": stats.JobsImported,
			"ignored":  stats.JobsIgnored,
			"failed":   stats.JobsFailed,
			"pruned":   stats.JobsPruned,
		},
	}

	if h.websocket != nil {
		health.Checks["websocket"] = CheckResult{
			Status: "healthy",
			Data:   map[string]interface{}{"clients": h.websocket.GetConnectionStats().TotalConnections},
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// DatabaseHealthCheck checks database connectivity
// @Summary Database health check
// @Description Check database connectivity when jobs are stored in PostgreSQL
// @Tags Health
// @Produce json
// @Success 200 {object} utils.APIResponse "Database is healthy"
// @Failure 404 {object} utils.APIResponse "No database configured"
// @Failure 503 {object} utils.APIResponse "Database is unhealthy"
// @Router /health/db [get]
func (h *HealthHandler) DatabaseHealthCheck(c *gin.Context) {
	if h.db == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No database configured", nil)
		return
	}

	startTime := time.Now()
	if err := h.db.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database unhealthy", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Database is healthy", gin.H{
		"status":           "healthy",
		"response_time_ms": time.Since(startTime).Milliseconds(),
		"stats":            h.db.GetStats(),
	})
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to capture jobs and serve traffic
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	for _, status := range h.jobService.CaptureStatus() {
		if !status.Stats.Listening {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": status.Source + " not listening",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
