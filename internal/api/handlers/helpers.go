package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	"github.com/maheshrc27/postflow/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// Clock is replaced in tests.
var Clock = time.Now

// errorResponse maps service errors onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	var (
		validation *scheduling.ValidationError
		transition *scheduling.InvalidTransitionError
		rejected   *scheduling.DragRejectedError
		commit     *scheduling.CommitFailureError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    "validation failed",
			"errors":   validation.Errors,
			"warnings": nonNil(validation.Warnings),
		})
	case errors.As(err, &commit):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     commit.Error(),
			"retryable": true,
		})
	case errors.As(err, &transition), errors.As(err, &rejected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrInProgress),
		errors.Is(err, repository.ErrStaleWrite):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, scheduling.ErrPublicationNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, scheduling.ErrInvalidSlot),
		errors.Is(err, service.ErrUnsupportedMedia):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrInvalidUser):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	slog.Error(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Something went wrong",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
