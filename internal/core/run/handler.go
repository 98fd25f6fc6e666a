package run

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/platform/tasks"
)

// EnqueueFunc queues a crawl and returns its run id.
type EnqueueFunc func(ctx context.Context, req pipeline.Request) (string, error)

type Reader interface {
	Get(ctx context.Context, id string) (*Run, error)
}

type Handler struct {
	runs    Reader
	enqueue EnqueueFunc
}

func NewHandler(runs Reader, enqueue EnqueueFunc) *Handler {
	return &Handler{runs: runs, enqueue: enqueue}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type createResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
}

type statusResponse struct {
	Success bool `json:"success"`
	*Run
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Success: false, Error: msg})
}

func (h *Handler) HandleCreateRun(c *fiber.Ctx) error {
	var req pipeline.Request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid body")
		}
	}
	if req.StartPage < 0 || req.MaxPages < 0 {
		return fail(c, fiber.StatusBadRequest, "start_page and max_pages must not be negative")
	}
	id, err := h.enqueue(c.UserContext(), req)
	switch {
	case errors.Is(err, pipeline.ErrUnknownCategory):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrDuplicateRun):
		return fail(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(createResponse{Success: true, RunID: id})
}

func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	r, err := h.runs.Get(c.UserContext(), c.Params("runId"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "not_found")
	}
	return c.JSON(statusResponse{Success: true, Run: r})
}
