package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/ratelimit"
	"github.com/forgehq/forge/pkg/services"
)

const (
	orgIDLocal      = "org_id"
	credentialLocal = "credential"

	// orgHeader authenticates requests that arrive pre-authorized, e.g.
	// from an internal gateway or the dev console. Bearer keys take
	// precedence when both are present.
	orgHeader = "X-Org-ID"
)

// NewAuthMiddleware resolves the calling organization for every management
// request. A Bearer API key is validated against the credential store, then
// checked against its IP allowlist and per-minute rate limit.
func NewAuthMiddleware(credentials *services.Credential, limiter ratelimit.Limiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)

		if strings.HasPrefix(authHeader, "Bearer ") {
			key := strings.TrimPrefix(authHeader, "Bearer ")

			credential, err := credentials.Validate(c.Context(), key)
			if err != nil {
				return handleServiceError(c, err)
			}

			if !ipAllowed(credential, c.IP()) {
				return unauthorized(c, "request IP is not on the credential's allowlist")
			}

			allowed, err := limiter.Allow(c.Context(), credential.ID, credential.RateLimitPerMin)
			if err != nil {
				return internalError(c, err)
			}

			if !allowed {
				return handleServiceError(c, services.ErrRateLimited)
			}

			c.Locals(orgIDLocal, credential.OrgID)
			c.Locals(credentialLocal, credential)

			return c.Next()
		}

		if orgID := c.Get(orgHeader); orgID != "" {
			c.Locals(orgIDLocal, orgID)

			return c.Next()
		}

		return unauthorized(c, "missing credentials")
	}
}

// orgID returns the organization resolved by the auth middleware.
func orgID(c fiber.Ctx) string {
	id, _ := c.Locals(orgIDLocal).(string)

	return id
}

func ipAllowed(credential *models.Credential, ip string) bool {
	if len(credential.IPAllowlist) == 0 {
		return true
	}

	for _, allowed := range credential.IPAllowlist {
		if allowed == ip {
			return true
		}
	}

	return false
}
