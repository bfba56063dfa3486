package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/eduflow-br/eduflow/app/controllers"
	"github.com/eduflow-br/eduflow/app/repository"
	"github.com/eduflow-br/eduflow/internal/pkg/cache"
	"github.com/eduflow-br/eduflow/internal/pkg/database"
	"github.com/eduflow-br/eduflow/internal/pkg/env"
	"github.com/eduflow-br/eduflow/internal/pkg/gateway"
	"github.com/eduflow-br/eduflow/internal/pkg/metrics/counter"
	"github.com/eduflow-br/eduflow/internal/pkg/notify"
	"github.com/eduflow-br/eduflow/internal/pkg/paymentconfig"
	"github.com/eduflow-br/eduflow/internal/pkg/pixtracker"
	"github.com/eduflow-br/eduflow/internal/pkg/router"
	"github.com/eduflow-br/eduflow/internal/pkg/scheduler"
	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
	"github.com/eduflow-br/eduflow/internal/pkg/webhookproc"
)

func main() {
	app, sched := NewApplication()

	// Graceful shutdown: stop accepting requests, then wait for in-flight
	// sweeps to finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	sched.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *scheduler.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	configStore := paymentconfig.NewStore(paymentconfig.NewRepository(db), cache.GetClient())
	registry := gateway.NewRegistry(buildStripeAdapter(configStore), gateway.NewPagBrasilAdapterFromEnv())

	var notifier notify.Notifier = notify.NoopNotifier{}
	if env.GetEnv("SMTP_HOST", "") != "" {
		notifier = notify.NewMailNotifier()
	}

	repo := subscription.NewRepository(db)
	svc := subscription.NewService(repo, registry, configStore, notifier)
	tracker := pixtracker.NewTracker(pixtracker.NewRepository(db), svc)
	counters := counter.New(cache.GetClient())
	processor := webhookproc.NewProcessor(registry, configStore, svc, counters)

	sched := scheduler.NewManager(tracker, svc)
	sched.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "EduFlow Billing",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Controllers{
		Subscription: controllers.NewSubscriptionController(svc),
		Payment:      controllers.NewPaymentController(svc, repository.GetGlobalFactory().GetPlanRepository(), configStore),
		Webhook:      controllers.NewWebhookController(processor),
		Admin:        controllers.NewAdminController(configStore, sched, svc, counters),
	})

	return app, sched
}

// buildStripeAdapter resolves the Stripe API key from the stored payment
// configuration, falling back to STRIPE_API_KEY. Credential changes through
// the admin API take effect on the next restart.
func buildStripeAdapter(configStore *paymentconfig.Store) *gateway.StripeAdapter {
	apiKey := env.GetEnv("STRIPE_API_KEY", "")
	if cfg, err := configStore.GetConfig(context.Background()); err == nil && cfg.APIKey != "" {
		apiKey = cfg.APIKey
	}
	return gateway.NewStripeAdapter(apiKey)
}
