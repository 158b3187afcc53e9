package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// errorResponse maps service errors onto HTTP statuses. Anything it does not
// recognise goes to the app ErrorHandler.
func errorResponse(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "The given data was invalid.",
			"errors":  verr.Fields(),
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
		})
	case errors.Is(err, service.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "The post changed while it was being updated, reload and try again",
		})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to access this resource",
		})
	}
	return err
}

func authorizePost(c *fiber.Ctx, post *models.Post) error {
	if post.UserID != GetUserID(c) {
		return service.ErrUnauthorized
	}
	return nil
}

// logActivity writes the audit record for a committed post mutation.
func logActivity(c *fiber.Ctx, action string, postID int64, attrs ...any) {
	args := []any{
		"action", action,
		"subject", "post",
		"subject_id", postID,
		"causer_id", GetUserID(c),
	}
	slog.Info("activity", append(args, attrs...)...)
}

func postSummary(p *models.Post) map[string]any {
	if p == nil {
		return nil
	}
	summary := map[string]any{
		"title":        p.Title,
		"status":       p.Status,
		"has_image":    p.HasImage(),
		"platform_ids": p.PlatformIDs(),
	}
	if p.ScheduledTime != nil {
		summary["scheduled_time"] = p.ScheduledTime
	}
	return summary
}
