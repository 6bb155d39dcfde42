// Package main provides the Forge API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/forgehq/forge/pkg/capability"
	"github.com/forgehq/forge/pkg/engine"
	"github.com/forgehq/forge/pkg/eventbus"
	"github.com/forgehq/forge/pkg/persistence"
	"github.com/forgehq/forge/pkg/ratelimit"
	"github.com/forgehq/forge/pkg/services"
	"github.com/forgehq/forge/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	redisURL    string
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	redisURL string,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	runEngine := engine.NewEngine(a.logger, a.persistence, capability.NewDispatcher(), a.eventBus)

	flowService := services.NewFlow(a.persistence)
	runService := services.NewRun(a.persistence, runEngine)
	webhookService := services.NewWebhook(a.persistence, runEngine)
	credentialService := services.NewCredential(a.persistence)
	environmentService := services.NewEnvironment(a.persistence)
	usageService := services.NewUsage(a.persistence)

	handlers := web.NewAPIHandlers(
		flowService,
		runService,
		webhookService,
		credentialService,
		environmentService,
		usageService,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Forge API")
	})

	web.RegisterRoutes(app, handlers, web.NewAuthMiddleware(credentialService, a.limiter()))

	return app
}

// limiter returns the Redis-backed rate limiter, or a no-op one when no
// Redis URL is configured.
func (a *API) limiter() ratelimit.Limiter {
	if a.redisURL == "" {
		return ratelimit.NoopLimiter{}
	}

	options, err := redis.ParseURL(a.redisURL)
	if err != nil {
		panic(err)
	}

	return ratelimit.NewRedisLimiter(redis.NewClient(options))
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
