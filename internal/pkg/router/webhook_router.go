package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/app/controllers"
)

type WebhookRouter struct {
	webhook *controllers.WebhookController
}

func NewWebhookRouter(webhook *controllers.WebhookController) *WebhookRouter {
	return &WebhookRouter{webhook: webhook}
}

func (h *WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/:provider", h.webhook.HandleWebhook)
}
