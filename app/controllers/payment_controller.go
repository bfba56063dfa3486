package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/app/models"
	"github.com/eduflow-br/eduflow/app/repository"
	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
)

// ConfigReader provides the current payment configuration snapshot.
type ConfigReader interface {
	GetConfig(ctx context.Context) (*models.PaymentConfig, error)
}

// PaymentController serves payment status polling, the plan catalog and the
// public slice of the payment configuration.
type PaymentController struct {
	svc    *subscription.Service
	plans  repository.PlanRepository
	config ConfigReader
}

func NewPaymentController(svc *subscription.Service, plans repository.PlanRepository, config ConfigReader) *PaymentController {
	return &PaymentController{svc: svc, plans: plans, config: config}
}

// HandleGetPayment returns one payment owned by the student. The frontend
// polls this while a PIX offer is open.
// GET /api/v1/payments/:uuid
func (ct *PaymentController) HandleGetPayment(c *fiber.Ctx) error {
	studentID, err := extractStudentID(c)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	payment, err := ct.svc.GetPaymentStatus(c.Context(), studentID, c.Params("uuid"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(payment)
}

// HandleListPlans returns the purchasable plans.
// GET /api/v1/plans
func (ct *PaymentController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := ct.plans.GetActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load plans"})
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandlePublicConfig returns the client-relevant slice of the payment
// configuration. Credentials never appear here; the model masks them.
// GET /api/v1/config
func (ct *PaymentController) HandlePublicConfig(c *fiber.Ctx) error {
	cfg, err := ct.config.GetConfig(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load configuration"})
	}
	return c.JSON(fiber.Map{
		"active_gateway":         cfg.ActiveGateway,
		"pix_expiration_minutes": cfg.PixExpirationMinutes,
		"pix_discount_percent":   cfg.PixDiscountPercent,
	})
}
