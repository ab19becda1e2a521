package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/loading"
)

type HealthHandler struct {
	lc *loading.Coordinator
}

func NewHealthHandler(lc *loading.Coordinator) *HealthHandler {
	return &HealthHandler{lc: lc}
}

// Health reports 503 while startup tasks are still running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if h.lc.Blocking() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "starting",
			"pending": h.lc.Pending(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}
