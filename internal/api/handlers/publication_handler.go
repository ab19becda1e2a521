package handlers

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PublicationHandler struct {
	s service.PublicationService
}

func NewPublicationHandler(s service.PublicationService) *PublicationHandler {
	return &PublicationHandler{s: s}
}

func (h *PublicationHandler) CreatePublication(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var in transfer.PublicationInput
	if err := c.BodyParser(&in); err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Invalid request body")
	}

	content, platforms, err := in.ToContent()
	if err != nil {
		return badRequest(c, err.Error())
	}
	action, err := service.ParseAction(in.Action)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.s.Create(c.Context(), userID, service.CreateInput{
		Content:     content,
		Platforms:   platforms,
		Action:      action,
		ScheduledAt: in.ScheduledAt,
	}, Clock())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *PublicationHandler) Validate(c *fiber.Ctx) error {
	var in transfer.PublicationInput
	if err := c.BodyParser(&in); err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Invalid request body")
	}

	content, platforms, err := in.ToContent()
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(h.s.Validate(content, platforms))
}

func (h *PublicationHandler) ListPublications(c *fiber.Ctx) error {
	userID := GetUserID(c)

	filter := repository.PublicationFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.PublicationStatus(strings.TrimSpace(s)))
		}
	}

	pubs, err := h.s.List(c.Context(), userID, filter)
	if err != nil {
		return errorResponse(c, err)
	}
	if pubs == nil {
		pubs = []*models.Publication{}
	}

	return c.Status(fiber.StatusOK).JSON(pubs)
}

func (h *PublicationHandler) GetPublication(c *fiber.Ctx) error {
	p, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PublicationHandler) UpdateContent(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var in transfer.PublicationInput
	if err := c.BodyParser(&in); err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Invalid request body")
	}

	content, platforms, err := in.ToContent()
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.s.UpdateContent(c.Context(), userID, c.Params("id"), content, platforms, Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *PublicationHandler) Schedule(c *fiber.Ctx) error {
	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil || req.ScheduledAt.IsZero() {
		return badRequest(c, "scheduled_at is required")
	}

	p, err := h.s.RequestSchedule(c.Context(), GetUserID(c), c.Params("id"), req.ScheduledAt, Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PublicationHandler) PublishNow(c *fiber.Ctx) error {
	p, err := h.s.RequestPublishNow(c.Context(), GetUserID(c), c.Params("id"), Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PublicationHandler) Unschedule(c *fiber.Ctx) error {
	p, err := h.s.Unschedule(c.Context(), GetUserID(c), c.Params("id"), Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PublicationHandler) Cancel(c *fiber.Ctx) error {
	p, err := h.s.Cancel(c.Context(), GetUserID(c), c.Params("id"), Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PublicationHandler) Duplicate(c *fiber.Ctx) error {
	p, err := h.s.Duplicate(c.Context(), GetUserID(c), c.Params("id"), Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Reschedule moves a publication to a calendar cell, the same way dropping it
// there in the calendar would.
func (h *PublicationHandler) Reschedule(c *fiber.Ctx) error {
	var req transfer.RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Invalid request body")
	}

	date, err := h.s.Grid().ParseDate(req.Date)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}

	res, err := h.s.Reschedule(c.Context(), GetUserID(c), c.Params("id"), date, req.SlotIndex, Clock())
	if err != nil {
		return errorResponse(c, err)
	}
	if !res.Committed {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "slot is in the past",
			"result": res,
		})
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *PublicationHandler) RemovePublication(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PublicationHandler) Deliveries(c *fiber.Ctx) error {
	report, err := h.s.Deliveries(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *PublicationHandler) Calendar(c *fiber.Ctx) error {
	view, err := models.ParseCalendarView(c.Query("view"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	now := Clock()
	anchor := now
	if raw := c.Query("anchor"); raw != "" {
		anchor, err = h.s.Grid().ParseDate(raw)
		if err != nil {
			return badRequest(c, "anchor must be YYYY-MM-DD")
		}
	}

	page, err := h.s.Calendar(c.Context(), GetUserID(c), view, anchor, now)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(page)
}
