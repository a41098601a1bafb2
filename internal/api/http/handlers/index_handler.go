package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/observability"
)

// IndexHandler lists the API entry points.
type IndexHandler struct {
	serviceName string
	version     string
}

// NewIndexHandler constructs handler.
func NewIndexHandler(serviceName, version string) *IndexHandler {
	return &IndexHandler{serviceName: serviceName, version: version}
}

// Index handles GET /.
func (h *IndexHandler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.serviceName,
		"version": h.version,
		"endpoints": fiber.Map{
			"usuarios": "/api/usuarios",
			"chamados": "/api/chamados",
			"posts":    "/api/posts",
			"uploads":  "/uploads",
			"health":   "/health/ready",
		},
	})
}

// MetricsHandler exposes the in-memory request counters.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot handles GET /metrics.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(data(h.metrics.Snapshot()))
}
