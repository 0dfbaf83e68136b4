package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"helpdock/internal/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db    *database.DB
	mongo *database.MongoDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, mongo *database.MongoDB) *HealthHandler {
	return &HealthHandler{db: db, mongo: mongo}
}

// Handle responds with server health status and backing store liveness
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := fiber.Map{}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			checks["mysql"] = err.Error()
		} else {
			checks["mysql"] = "ok"
		}
	}
	if h.mongo != nil {
		if err := h.mongo.Ping(ctx); err != nil {
			status = "degraded"
			checks["mongodb"] = err.Error()
		} else {
			checks["mongodb"] = "ok"
		}
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
