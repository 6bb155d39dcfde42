package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/forgehq/forge/pkg/persistence"
	"github.com/forgehq/forge/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErr *services.FlowValidationError

	switch {
	case errors.As(err, &validationErr):
		// Validation findings are structured; problems has no slot for
		// them, so they ride alongside the standard fields.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"type":     "flow_validation_error",
			"title":    "Bad Request",
			"status":   fiber.StatusBadRequest,
			"detail":   err.Error(),
			"instance": c.Path(),
			"findings": validationErr.Findings,
		})

	case errors.Is(err, services.ErrRateLimited):
		problem := problems.NewStatusProblem(429).
			WithInstance(c.Path()).
			WithType("rate_limited").
			WithDetail(err.Error())

		return c.Status(fiber.StatusTooManyRequests).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsAuthError(err):
		return unauthorized(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsRunNotFound(err):
		return notFound(c, "run not found")

	case persistence.IsWebhookNotFound(err):
		return notFound(c, "webhook not found")

	case persistence.IsCredentialNotFound(err):
		return notFound(c, "credential not found")

	case persistence.IsEnvironmentNotFound(err):
		return notFound(c, "environment not found")

	default:
		return internalError(c, err)
	}
}
