// Package main provides the chanmirror API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/chanmirror/pkg/eventbus"
	"github.com/dukex/chanmirror/pkg/metrics"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/dukex/chanmirror/pkg/services"
	"github.com/dukex/chanmirror/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	recorder    *metrics.Recorder
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	recorder *metrics.Recorder,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		recorder:    recorder,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence)
	channelService := services.NewChannel(a.persistence)
	runService := services.NewRun(a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(workflowService, channelService, runService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("chanmirror API")
	})

	app.Get("/metrics", adaptor.HTTPHandler(a.recorder.Handler()))
	app.Get("/health", handlers.HealthCheck)

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
