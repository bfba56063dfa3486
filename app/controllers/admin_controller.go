package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/eduflow-br/eduflow/internal/pkg/metrics/counter"
	"github.com/eduflow-br/eduflow/internal/pkg/paymentconfig"
	"github.com/eduflow-br/eduflow/internal/pkg/scheduler"
	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
)

// AdminController serves the operator endpoints: payment configuration,
// payment metrics, the cross-student subscription listing and manual sweep
// triggers. All routes sit behind the admin token middleware.
type AdminController struct {
	config   *paymentconfig.Store
	sched    *scheduler.Manager
	svc      *subscription.Service
	counters *counter.Counter
}

func NewAdminController(config *paymentconfig.Store, sched *scheduler.Manager, svc *subscription.Service, counters *counter.Counter) *AdminController {
	return &AdminController{config: config, sched: sched, svc: svc, counters: counters}
}

// HandleGetConfig returns the full payment configuration. Credential fields
// are masked by the model's JSON tags even here.
// GET /api/v1/admin/config
func (ct *AdminController) HandleGetConfig(c *fiber.Ctx) error {
	cfg, err := ct.config.GetConfig(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load configuration"})
	}
	return c.JSON(cfg)
}

// HandleUpdateConfig applies a partial configuration update. The cached
// snapshot is invalidated so the change is visible immediately.
// PUT /api/v1/admin/config
func (ct *AdminController) HandleUpdateConfig(c *fiber.Ctx) error {
	var in paymentconfig.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	cfg, err := ct.config.UpdateConfig(c.Context(), in)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unprocessable", "message": err.Error()})
	}
	return c.JSON(cfg)
}

// HandleListSubscriptions returns a page of subscriptions across all
// students, newest first. Query params: page, per_page, status.
// GET /api/v1/admin/subscriptions
func (ct *AdminController) HandleListSubscriptions(c *fiber.Ctx) error {
	page, err := ct.svc.ListSubscriptions(c.Context(),
		c.Query("status"),
		c.QueryInt("page", 1),
		c.QueryInt("per_page", 20),
	)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidStatusFilter) {
			return badRequest(c, err.Error())
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list subscriptions"})
	}
	return c.JSON(page)
}

// HandleSubscriptionStats returns the per-status subscription counts.
// GET /api/v1/admin/subscriptions/stats
func (ct *AdminController) HandleSubscriptionStats(c *fiber.Ctx) error {
	stats, err := ct.svc.SubscriptionStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not compute stats"})
	}
	return c.JSON(stats)
}

// HandleMetrics returns the per-day payment counters.
// GET /api/v1/admin/metrics
func (ct *AdminController) HandleMetrics(c *fiber.Ctx) error {
	snap, err := ct.counters.Read(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read counters"})
	}
	return c.JSON(snap)
}

// HandleRunPixSweep triggers one PIX expiration pass.
// POST /api/v1/admin/jobs/pix-sweep
func (ct *AdminController) HandleRunPixSweep(c *fiber.Ctx) error {
	n, err := ct.sched.RunPixSweepNow()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error(), "expired": n})
	}
	return c.JSON(fiber.Map{"expired": n})
}

// HandleRunPeriodSweep triggers one subscription period pass.
// POST /api/v1/admin/jobs/period-sweep
func (ct *AdminController) HandleRunPeriodSweep(c *fiber.Ctx) error {
	n, err := ct.sched.RunPeriodSweepNow()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error(), "suspended": n})
	}
	return c.JSON(fiber.Map{"suspended": n})
}
