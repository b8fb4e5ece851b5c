package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kgrail/kgrail"
)

// Build information - can be set at build time using ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	engine kgrail.Engine
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine kgrail.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health - basic liveness check.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "kgrail",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "kgrail",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. The engine is ready when the graph
// store answers a stats call within the timeout.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx := c.Request.Context()

	response := gin.H{
		"status":    "ready",
		"service":   "kgrail",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    gin.H{},
	}
	checks := response["checks"].(gin.H)

	if h.engine == nil {
		checks["graph_store"] = gin.H{"status": "unhealthy", "error": "engine not initialized"}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	start := time.Now()
	stats, err := h.engine.Stats(ctx)
	duration := time.Since(start)

	if err != nil {
		checks["graph_store"] = gin.H{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": duration.String(),
		}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	checks["graph_store"] = gin.H{
		"status":    "healthy",
		"duration":  duration.String(),
		"documents": stats.Documents,
		"nodes":     stats.Nodes,
	}
	c.JSON(http.StatusOK, response)
}
