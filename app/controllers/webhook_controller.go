package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/app/models"
	"github.com/eduflow-br/eduflow/internal/pkg/webhookproc"
)

// WebhookController receives gateway webhook deliveries. The response code is
// the retry contract with the provider: 2xx acknowledges (including
// duplicates and ignored events), 4xx rejects bad signatures for good, 5xx
// asks for redelivery after a transient failure.
type WebhookController struct {
	proc *webhookproc.Processor
}

func NewWebhookController(proc *webhookproc.Processor) *WebhookController {
	return &WebhookController{proc: proc}
}

// signatureHeader returns the provider's signature header for the delivery.
func signatureHeader(c *fiber.Ctx, provider string) string {
	switch provider {
	case models.GatewayProviderStripe:
		return c.Get("Stripe-Signature")
	case models.GatewayProviderPagBrasil:
		return c.Get("X-Pagbrasil-Signature")
	default:
		return ""
	}
}

// HandleWebhook processes one delivery for the provider in the route.
// POST /webhooks/:provider
func (ct *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider")

	// c.Body() is the raw payload; signature verification needs the exact
	// bytes the provider signed.
	payload := c.Body()
	result := ct.proc.Process(c.Context(), provider, payload, signatureHeader(c, provider))

	switch result.Status {
	case webhookproc.StatusRejected:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "signature verification failed"})
	case webhookproc.StatusRetryable:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "temporary failure, please retry"})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}
