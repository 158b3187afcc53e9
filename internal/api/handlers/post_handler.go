package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/queue"
	"github.com/maheshrc27/scheduled-publisher/internal/service"
	"github.com/maheshrc27/scheduled-publisher/internal/transfer"
)

type PostHandler struct {
	s        service.PostService
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewPostHandler(s service.PostService, enqueuer queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, enqueuer: enqueuer, now: time.Now}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PostCreation
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	res, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return errorResponse(c, err)
	}

	logActivity(c, "created", res.Post.ID, "after", postSummary(res.Post))
	h.scheduleCycle(res.Post)

	body := fiber.Map{
		"message": "Post created successfully",
		"post":    res.Post,
	}
	if res.MediaErr != nil {
		body["media_error"] = res.MediaErr.Error()
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	var q transfer.PostListQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query parameters",
		})
	}

	page, err := h.s.List(c.Context(), GetUserID(c), &q)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(page)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req transfer.PostUpdate
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	res, err := h.s.Update(c.Context(), post.ID, &req)
	if err != nil {
		return errorResponse(c, err)
	}

	logActivity(c, "updated", res.Post.ID, "before", postSummary(res.Before), "after", postSummary(res.Post))
	h.scheduleCycle(res.Post)

	body := fiber.Map{
		"message": "Post updated successfully",
		"post":    res.Post,
	}
	if res.MediaErr != nil {
		body["media_error"] = res.MediaErr.Error()
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	post, err := h.ownedPost(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.s.Delete(c.Context(), post.ID); err != nil {
		return errorResponse(c, err)
	}

	logActivity(c, "deleted", post.ID, "before", postSummary(post))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post deleted successfully",
	})
}

func (h *PostHandler) Analytics(c *fiber.Ctx) error {
	analytics, err := h.s.Analytics(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(analytics)
}

// ProcessScheduled requests an immediate dispatch cycle from the worker.
func (h *PostHandler) ProcessScheduled(c *fiber.Ctx) error {
	if err := queue.EnqueueDispatchCycle(h.enqueuer, h.now()); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Processing of scheduled posts has been queued",
	})
}

func (h *PostHandler) ownedPost(c *fiber.Ctx) (*models.Post, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, service.ErrNotFound
	}

	post, err := h.s.Get(c.Context(), int64(id))
	if err != nil {
		return nil, err
	}
	if err := authorizePost(c, post); err != nil {
		return nil, err
	}
	return post, nil
}

// scheduleCycle asks for a cycle at the post's publish time. The periodic
// trigger still covers the post if this fails.
func (h *PostHandler) scheduleCycle(post *models.Post) {
	if post == nil || post.Status != models.PostStatusScheduled || post.ScheduledTime == nil {
		return
	}
	if err := queue.EnqueueDispatchCycle(h.enqueuer, *post.ScheduledTime); err != nil {
		slog.Error("failed to enqueue dispatch cycle", "post_id", post.ID, "error", err)
	}
}
