package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
)

// StudentIDHeader carries the authenticated student id. The platform gateway
// terminates authentication and injects this header; the engine trusts it.
const StudentIDHeader = "X-Student-ID"

// extractStudentID reads the authenticated student id from the request.
func extractStudentID(c *fiber.Ctx) (uint, error) {
	raw := c.Get(StudentIDHeader)
	if raw == "" {
		return 0, errors.New("missing student identity")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid student identity")
	}
	return uint(id), nil
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": msg})
}

// respondServiceError maps the subscription engine's closed error set onto
// HTTP statuses. Unknown errors are reported as internal without leaking the
// cause to the client.
func respondServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, subscription.ErrStudentNotFound),
		errors.Is(err, subscription.ErrPlanNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, subscription.ErrActiveSubscriptionExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, subscription.ErrInvalidStateTransition),
		errors.Is(err, subscription.ErrUnsupportedPaymentMethod):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unprocessable", "message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
	}
}
