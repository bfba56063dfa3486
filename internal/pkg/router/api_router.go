package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/eduflow-br/eduflow/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrl Controllers
}

func NewApiRouter(ctrl Controllers) *ApiRouter {
	return &ApiRouter{ctrl: ctrl}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Catalog and public configuration
	v1.Get("/plans", h.ctrl.Payment.HandleListPlans)
	v1.Get("/config", h.ctrl.Payment.HandlePublicConfig)

	// Student subscription lifecycle
	v1.Post("/checkout", h.ctrl.Subscription.HandleCheckout)
	v1.Get("/subscriptions/current", h.ctrl.Subscription.HandleCurrent)
	v1.Post("/subscriptions/:uuid/cancel", h.ctrl.Subscription.HandleCancel)
	v1.Post("/subscriptions/:uuid/reactivate", h.ctrl.Subscription.HandleReactivate)
	v1.Get("/payments/:uuid", h.ctrl.Payment.HandleGetPayment)

	// Operator surface
	admin := v1.Group("/admin", middleware.AdminTokenMiddleware())
	admin.Get("/config", h.ctrl.Admin.HandleGetConfig)
	admin.Put("/config", h.ctrl.Admin.HandleUpdateConfig)
	admin.Get("/subscriptions", h.ctrl.Admin.HandleListSubscriptions)
	admin.Get("/subscriptions/stats", h.ctrl.Admin.HandleSubscriptionStats)
	admin.Get("/metrics", h.ctrl.Admin.HandleMetrics)
	admin.Post("/jobs/pix-sweep", h.ctrl.Admin.HandleRunPixSweep)
	admin.Post("/jobs/period-sweep", h.ctrl.Admin.HandleRunPeriodSweep)
}
