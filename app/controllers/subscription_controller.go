package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
)

// SubscriptionController serves the student-facing subscription lifecycle
// endpoints: checkout, cancel, reactivate and the current-subscription view.
type SubscriptionController struct {
	svc *subscription.Service
}

func NewSubscriptionController(svc *subscription.Service) *SubscriptionController {
	return &SubscriptionController{svc: svc}
}

type checkoutRequest struct {
	PlanUUID   string `json:"plan_uuid"`
	Method     string `json:"method"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// HandleCheckout opens a checkout for a plan.
// POST /api/v1/checkout
func (ct *SubscriptionController) HandleCheckout(c *fiber.Ctx) error {
	studentID, err := extractStudentID(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PlanUUID == "" || req.Method == "" {
		return badRequest(c, "plan_uuid and method are required")
	}

	result, err := ct.svc.CreateSubscription(c.Context(), subscription.CheckoutInput{
		StudentID:  studentID,
		PlanUUID:   req.PlanUUID,
		Method:     req.Method,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleCurrent returns the student's latest non-cancelled subscription.
// GET /api/v1/subscriptions/current
func (ct *SubscriptionController) HandleCurrent(c *fiber.Ctx) error {
	studentID, err := extractStudentID(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	sub, err := ct.svc.GetCurrentSubscription(c.Context(), studentID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "no subscription"})
	}
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(sub)
}

// HandleCancel cancels the student's subscription. Idempotent.
// POST /api/v1/subscriptions/:uuid/cancel
func (ct *SubscriptionController) HandleCancel(c *fiber.Ctx) error {
	studentID, err := extractStudentID(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	if err := ct.svc.CancelSubscription(c.Context(), studentID, c.Params("uuid")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "cancelled"})
}

// HandleReactivate opens a fresh checkout for a suspended subscription.
// POST /api/v1/subscriptions/:uuid/reactivate
func (ct *SubscriptionController) HandleReactivate(c *fiber.Ctx) error {
	studentID, err := extractStudentID(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Method == "" {
		return badRequest(c, "method is required")
	}

	result, err := ct.svc.ReactivateSubscription(c.Context(), studentID, c.Params("uuid"), subscription.CheckoutInput{
		StudentID:  studentID,
		Method:     req.Method,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
