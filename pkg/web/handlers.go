// Package web provides the HTTP handlers of the flow API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
	"github.com/forgehq/forge/pkg/services"
)

// SignatureHeader carries the HMAC of a webhook delivery body.
const SignatureHeader = "X-Forge-Signature"

type APIHandlers struct {
	flowService        *services.Flow
	runService         *services.Run
	webhookService     *services.Webhook
	credentialService  *services.Credential
	environmentService *services.Environment
	usageService       *services.Usage
	validator          *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	runService *services.Run,
	webhookService *services.Webhook,
	credentialService *services.Credential,
	environmentService *services.Environment,
	usageService *services.Usage,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:        flowService,
		runService:         runService,
		webhookService:     webhookService,
		credentialService:  credentialService,
		environmentService: environmentService,
		usageService:       usageService,
		validator:          validator,
	}
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	opts := persistence.ListFlowsOptions{OrgID: orgID(c)}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset: "+err.Error())
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.FlowStatus(statusStr)
		opts.Status = &status
	}

	result, err := h.flowService.List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flows":         result.Flows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		OrgID:       orgID(c),
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Definition != nil {
		flow.Definition = *req.Definition
	}

	created, err := h.flowService.Create(c.Context(), flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flowService.Update(c.Context(), orgID(c), c.Params("id"), req.Name, req.Description, req.Definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	if err := h.flowService.Delete(c.Context(), orgID(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	published, err := h.flowService.Publish(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) ArchiveFlow(c fiber.Ctx) error {
	archived, err := h.flowService.Archive(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(archived)
}

func (h *APIHandlers) QueueRun(c fiber.Ctx) error {
	var req QueueRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	run, err := h.runService.Queue(c.Context(), orgID(c), c.Params("id"), "api", req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	detail, err := h.runService.FetchByID(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) GetFlowRuns(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	runs, err := h.runService.ListByFlow(c.Context(), orgID(c), c.Params("id"), limit, offset)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) CreateWebhook(c fiber.Ctx) error {
	var req CreateWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	webhook, err := h.webhookService.Create(c.Context(), orgID(c), req.FlowID, req.EnvironmentID, req.PayloadSchema)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(WebhookResponse{Webhook: webhook, Secret: webhook.Secret})
}

func (h *APIHandlers) GetWebhooks(c fiber.Ctx) error {
	webhooks, err := h.webhookService.List(c.Context(), orgID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"webhooks": webhooks})
}

func (h *APIHandlers) GetWebhook(c fiber.Ctx) error {
	webhook, err := h.webhookService.FetchByID(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) PauseWebhook(c fiber.Ctx) error {
	webhook, err := h.webhookService.Pause(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) ResumeWebhook(c fiber.Ctx) error {
	webhook, err := h.webhookService.Resume(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) RegenerateWebhookSecret(c fiber.Ctx) error {
	webhook, err := h.webhookService.RegenerateSecret(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(WebhookResponse{Webhook: webhook, Secret: webhook.Secret})
}

func (h *APIHandlers) DeleteWebhook(c fiber.Ctx) error {
	if err := h.webhookService.Delete(c.Context(), orgID(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HandleWebhookDelivery is the public, unauthenticated endpoint senders call.
// It is mounted outside the auth middleware; the signature in the delivery
// headers is the authentication.
func (h *APIHandlers) HandleWebhookDelivery(c fiber.Ctx) error {
	run, err := h.webhookService.HandleDelivery(c.Context(), c.Params("slug"), c.Body(), c.Get(SignatureHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": run.ID, "status": run.Status})
}

func (h *APIHandlers) CreateCredential(c fiber.Ctx) error {
	var req CreateCredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.credentialService.Create(c.Context(), orgID(c), req.EnvironmentID, req.Name, services.CreateOptions{
		Scopes:          req.Scopes,
		IPAllowlist:     req.IPAllowlist,
		RateLimitPerMin: req.RateLimitPerMin,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateCredentialResponse{
		Credential: created.Credential,
		Key:        created.Key,
	})
}

func (h *APIHandlers) GetCredentials(c fiber.Ctx) error {
	credentials, err := h.credentialService.List(c.Context(), orgID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"credentials": credentials})
}

func (h *APIHandlers) UpdateCredential(c fiber.Ctx) error {
	var req UpdateCredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.credentialService.Update(c.Context(), orgID(c), c.Params("id"), services.UpdateOptions{
		Name:            req.Name,
		Scopes:          req.Scopes,
		IPAllowlist:     req.IPAllowlist,
		RateLimitPerMin: req.RateLimitPerMin,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) RevokeCredential(c fiber.Ctx) error {
	revoked, err := h.credentialService.Revoke(c.Context(), orgID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(revoked)
}

func (h *APIHandlers) DeleteCredential(c fiber.Ctx) error {
	if err := h.credentialService.Delete(c.Context(), orgID(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnsureEnvironments(c fiber.Ctx) error {
	environments, err := h.environmentService.EnsureEnvironments(c.Context(), orgID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"environments": environments})
}

func (h *APIHandlers) GetEnvironments(c fiber.Ctx) error {
	environments, err := h.environmentService.List(c.Context(), orgID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"environments": environments})
}

func (h *APIHandlers) GetUsage(c fiber.Ctx) error {
	entries, err := h.usageService.ListByOrg(c.Context(), orgID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	total := 0
	for _, entry := range entries {
		total += entry.Cost
	}

	return c.JSON(fiber.Map{"entries": entries, "total_cost": total})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Forge API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Forge API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
