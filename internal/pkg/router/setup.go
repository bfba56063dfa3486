package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/app/controllers"
)

// Router installs one route group on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles the constructed controllers for route installation.
type Controllers struct {
	Subscription *controllers.SubscriptionController
	Payment      *controllers.PaymentController
	Webhook      *controllers.WebhookController
	Admin        *controllers.AdminController
}

// InstallRouter wires all route groups. Webhooks are installed outside the
// rate-limited API group so provider redeliveries are never throttled into
// retry storms.
func InstallRouter(app *fiber.App, ctrl Controllers) {
	setup(app, NewApiRouter(ctrl), NewWebhookRouter(ctrl.Webhook))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
