package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/naturegraph/pkg/driver"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "naturegraph"

// ReadinessTimeout bounds the store call behind GET /ready.
const ReadinessTimeout = 5 * time.Second

// StatsReader reads graph statistics.
type StatsReader interface {
	Statistics(ctx context.Context) (*driver.GraphStats, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	graph   StatsReader
	started time.Time
}

// NewHealthHandler creates a new health handler. graph may be nil, in which
// case the readiness checks report the store as unavailable.
func NewHealthHandler(graph StatsReader) *HealthHandler {
	return &HealthHandler{graph: graph, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. The store must answer a statistics
// query within ReadinessTimeout.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ReadinessTimeout)
	defer cancel()

	check, ok := h.checkStore(ctx)
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    gin.H{"database": check},
	}
	if !ok {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*ReadinessTimeout)
	defer cancel()

	startTime := time.Now()
	check, ok := h.checkStore(ctx)
	metrics := getSystemMetrics()

	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{
			"database": check,
			"system": gin.H{
				"status":       "healthy",
				"uptime":       time.Since(h.started).Round(time.Second).String(),
				"memory_usage": metrics.MemoryUsage,
				"goroutines":   metrics.Goroutines,
				"gc_cycles":    metrics.GCCycles,
				"heap_objects": metrics.HeapObjects,
				"stack_usage":  metrics.StackUsage,
			},
		},
		"metrics": gin.H{
			"response_time_ms": time.Since(startTime).Milliseconds(),
		},
	}
	if !ok {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkStore(ctx context.Context) (gin.H, bool) {
	if h.graph == nil {
		return gin.H{"status": "unhealthy", "error": "graph store not initialized"}, false
	}

	start := time.Now()
	stats, err := h.graph.Statistics(ctx)
	duration := time.Since(start)
	if err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "database connection timeout"
		}
		return gin.H{"status": "unhealthy", "error": msg, "duration": duration.String()}, false
	}
	return gin.H{
		"status":              "healthy",
		"duration":            duration.String(),
		"total_nodes":         stats.TotalNodes,
		"total_relationships": stats.TotalRelationships,
	}, true
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

func getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
