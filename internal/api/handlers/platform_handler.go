package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduled-publisher/internal/service"
	"github.com/maheshrc27/scheduled-publisher/internal/transfer"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	platforms, err := h.ps.List(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(platforms)
}

func (h *PlatformHandler) TogglePlatforms(c *fiber.Ctx) error {
	var req transfer.PlatformToggle
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platforms, err := h.ps.Toggle(c.Context(), req.PlatformIDs)
	if err != nil {
		return errorResponse(c, err)
	}

	for _, p := range platforms {
		slog.Info("activity", "action", "toggled", "subject", "platform", "subject_id", p.ID,
			"causer_id", GetUserID(c), "status", p.Status)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Platform status updated successfully",
		"platforms": platforms,
	})
}
