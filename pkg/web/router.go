package web

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes mounts every endpoint on the app. The public webhook
// delivery route stays outside the auth middleware; everything else goes
// through it.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers, auth fiber.Handler) {
	app.Get("/health", handlers.HealthCheck)
	app.Post("/hooks/:slug", handlers.HandleWebhookDelivery)

	api := app.Group("/", auth)

	flows := api.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Get("/:id", handlers.GetFlow)
	flows.Patch("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.DeleteFlow)
	flows.Post("/:id/publish", handlers.PublishFlow)
	flows.Post("/:id/archive", handlers.ArchiveFlow)
	flows.Post("/:id/runs", handlers.QueueRun)
	flows.Get("/:id/runs", handlers.GetFlowRuns)

	api.Get("/runs/:id", handlers.GetRun)

	webhooks := api.Group("/webhooks")
	webhooks.Get("/", handlers.GetWebhooks)
	webhooks.Post("/", handlers.CreateWebhook)
	webhooks.Get("/:id", handlers.GetWebhook)
	webhooks.Post("/:id/pause", handlers.PauseWebhook)
	webhooks.Post("/:id/resume", handlers.ResumeWebhook)
	webhooks.Post("/:id/regenerate-secret", handlers.RegenerateWebhookSecret)
	webhooks.Delete("/:id", handlers.DeleteWebhook)

	credentials := api.Group("/credentials")
	credentials.Get("/", handlers.GetCredentials)
	credentials.Post("/", handlers.CreateCredential)
	credentials.Patch("/:id", handlers.UpdateCredential)
	credentials.Post("/:id/revoke", handlers.RevokeCredential)
	credentials.Delete("/:id", handlers.DeleteCredential)

	environments := api.Group("/environments")
	environments.Get("/", handlers.GetEnvironments)
	environments.Post("/", handlers.EnsureEnvironments)

	api.Get("/usage", handlers.GetUsage)
}
